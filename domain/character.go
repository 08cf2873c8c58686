package domain

import "time"

// Corporation is an EVE corporation keyed by its CCP id.
type Corporation struct {
	ID        int64     `bson:"_id"`
	Name      string    `bson:"name"`
	IsNPC     bool      `bson:"is_npc"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Alliance is an EVE alliance keyed by its CCP id.
type Alliance struct {
	ID        int64     `bson:"_id"`
	Name      string    `bson:"name"`
	ShortName string    `bson:"short_name,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// LocationRef names a solar system or station.
type LocationRef struct {
	ID   int64  `bson:"id" json:"id"`
	Name string `bson:"name" json:"name"`
}

// CharacterLog is the last known location of a character.
type CharacterLog struct {
	System    *LocationRef `bson:"system,omitempty" json:"system,omitempty"`
	Station   *LocationRef `bson:"station,omitempty" json:"station,omitempty"`
	UpdatedAt time.Time    `bson:"updated_at" json:"updatedAt"`
}

// Character is an EVE character keyed by its CCP id.
// CorporationID and AllianceID are 0 when the character has none.
type Character struct {
	ID                      int64         `bson:"_id"`
	Name                    string        `bson:"name"`
	OwnerHash               string        `bson:"owner_hash"`
	CrestAccessToken        string        `bson:"crest_access_token"`
	CrestRefreshToken       string        `bson:"crest_refresh_token"`
	CrestAccessTokenUpdated time.Time     `bson:"crest_access_token_updated"`
	CorporationID           int64         `bson:"corporation_id,omitempty"`
	AllianceID              int64         `bson:"alliance_id,omitempty"`
	Log                     *CharacterLog `bson:"log,omitempty"`
	CreatedAt               time.Time     `bson:"created_at"`
	UpdatedAt               time.Time     `bson:"updated_at"`
}
