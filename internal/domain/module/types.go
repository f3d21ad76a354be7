package module

import (
	"time"

	"github.com/GriffinCanCode/modhost/internal/shared/id"
)

// Author identifies who publishes a module
type Author struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Descriptor is the metadata document a catalog URL serves. It is never
// mutated after creation; a new version is a new descriptor.
type Descriptor struct {
	Name      string `json:"sourceName"`
	Author    Author `json:"author"`
	IconURL   string `json:"iconUrl"`
	Version   string `json:"version"`
	Language  string `json:"language"`
	ScriptURL string `json:"scriptUrl"`
}

// Record is one entry of the persisted catalog
type Record struct {
	ID         id.ModuleID `json:"id"`
	Descriptor Descriptor  `json:"metadata"`
	LocalPath  string      `json:"localPath"`
	CatalogURL string      `json:"metadataUrl"`
	Active     bool        `json:"isActive"`
	Checksum   string      `json:"checksum,omitempty"`
	AddedAt    time.Time   `json:"addedAt"`
}

// Equal compares records by identifier only
func (r Record) Equal(other Record) bool {
	return r.ID == other.ID
}

// Summary is the lightweight listing form of a record
type Summary struct {
	ID       id.ModuleID `json:"id"`
	Name     string      `json:"name"`
	Author   string      `json:"author"`
	Version  string      `json:"version"`
	Language string      `json:"language"`
	Active   bool        `json:"active"`
}

// Summary projects the record for listings
func (r Record) Summary() Summary {
	return Summary{
		ID:       r.ID,
		Name:     r.Descriptor.Name,
		Author:   r.Descriptor.Author.Name,
		Version:  r.Descriptor.Version,
		Language: r.Descriptor.Language,
		Active:   r.Active,
	}
}
