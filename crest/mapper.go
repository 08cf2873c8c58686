package crest

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Character is the mapped decode→character resource.
type Character struct {
	ID   int64  `mapstructure:"id" json:"id"`
	Name string `mapstructure:"name" json:"name"`
}

// Corporation is the corporation embedded in a character resource.
type Corporation struct {
	ID    int64  `mapstructure:"id" json:"id"`
	Name  string `mapstructure:"name" json:"name"`
	IsNPC bool   `mapstructure:"isNPC" json:"isNPC"`
}

// Alliance is the alliance embedded in a character resource, when present.
type Alliance struct {
	ID        int64  `mapstructure:"id" json:"id"`
	Name      string `mapstructure:"name" json:"name"`
	ShortName string `mapstructure:"shortName" json:"shortName,omitempty"`
}

// System is a solar system reference.
type System struct {
	ID   int64  `mapstructure:"id" json:"id"`
	Name string `mapstructure:"name" json:"name"`
}

// Station is a station reference.
type Station struct {
	ID   int64  `mapstructure:"id" json:"id"`
	Name string `mapstructure:"name" json:"name"`
}

func mapInto(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}

// MapCharacter maps a character document.
func MapCharacter(doc Document) (*Character, error) {
	var c Character
	if err := mapInto(doc, &c); err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, fmt.Errorf("%w: character without id", ErrProtocol)
	}
	return &c, nil
}

// MapCorporation maps an embedded corporation document.
func MapCorporation(doc Document) (*Corporation, error) {
	var c Corporation
	if err := mapInto(doc, &c); err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, fmt.Errorf("%w: corporation without id", ErrProtocol)
	}
	return &c, nil
}

// MapAlliance maps an embedded alliance document.
func MapAlliance(doc Document) (*Alliance, error) {
	var a Alliance
	if err := mapInto(doc, &a); err != nil {
		return nil, err
	}
	if a.ID == 0 {
		return nil, fmt.Errorf("%w: alliance without id", ErrProtocol)
	}
	return &a, nil
}

// MapSystem maps a solarSystem entry.
func MapSystem(doc Document) (*System, error) {
	var s System
	if err := mapInto(doc, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// MapStation maps a station entry.
func MapStation(doc Document) (*Station, error) {
	var s Station
	if err := mapInto(doc, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
