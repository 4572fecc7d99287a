package world

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlCatalogFile is the top-level YAML structure for the rooms file.
type yamlCatalogFile struct {
	Space yamlSpace `yaml:"space"`
}

// yamlSpace is the YAML representation of the space.
type yamlSpace struct {
	StartRoom string     `yaml:"start_room"`
	Rooms     []yamlRoom `yaml:"rooms"`
}

// yamlRoom is the YAML representation of a room.
type yamlRoom struct {
	ID    string    `yaml:"id"`
	Name  string    `yaml:"name"`
	Type  string    `yaml:"type"`
	Spawn yamlPoint `yaml:"spawn"`
}

// yamlPoint is an (x, y) pixel coordinate.
type yamlPoint struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// LoadCatalogFromFile reads and validates the rooms YAML file.
//
// Precondition: path must point to a valid YAML catalog file.
// Postcondition: Returns a validated Catalog or a non-nil error.
func LoadCatalogFromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rooms file %s: %w", path, err)
	}
	return LoadCatalogFromBytes(data)
}

// LoadCatalogFromBytes parses and validates a catalog from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the catalog schema.
// Postcondition: Returns a validated Catalog or a non-nil error.
func LoadCatalogFromBytes(data []byte) (*Catalog, error) {
	var file yamlCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rooms YAML: %w", err)
	}

	catalog := &Catalog{StartRoom: file.Space.StartRoom}
	for _, yr := range file.Space.Rooms {
		catalog.Rooms = append(catalog.Rooms, &Room{
			ID:     yr.ID,
			Name:   yr.Name,
			Type:   RoomType(yr.Type),
			SpawnX: yr.Spawn.X,
			SpawnY: yr.Spawn.Y,
		})
	}

	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}
