package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RoomConfig describes one room and its desks in office.yaml.
type RoomConfig struct {
	Name      string   `yaml:"name"`
	Available *bool    `yaml:"available,omitempty"`
	FloorPlan string   `yaml:"floor_plan,omitempty"`
	Desks     []string `yaml:"desks"`
}

// IsAvailable treats an omitted flag as available.
func (r RoomConfig) IsAvailable() bool {
	return r.Available == nil || *r.Available
}

type TeamConfig struct {
	Name          string `yaml:"name"`
	PreferredRoom string `yaml:"preferred_room,omitempty"`
}

// OfficeConfig is the root of office.yaml.
type OfficeConfig struct {
	Rooms []RoomConfig `yaml:"rooms"`
	Teams []TeamConfig `yaml:"teams"`
}

// LoadOfficeConfig loads and validates the office layout from a YAML file.
func LoadOfficeConfig(path string) (*OfficeConfig, error) {
	if path == "" {
		path = "configs/office.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read office config: %w", err)
	}

	var cfg OfficeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse office config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate office config: %w", err)
	}

	return &cfg, nil
}

// Validate checks name uniqueness across rooms, desks and teams.
func (c *OfficeConfig) Validate() error {
	rooms := make(map[string]bool)
	desks := make(map[string]bool)

	for i, room := range c.Rooms {
		if room.Name == "" {
			return fmt.Errorf("room[%d]: name is required", i)
		}
		if rooms[room.Name] {
			return fmt.Errorf("room[%d]: duplicate name '%s'", i, room.Name)
		}
		rooms[room.Name] = true

		for j, desk := range room.Desks {
			if desk == "" {
				return fmt.Errorf("room[%d].desks[%d]: name is required", i, j)
			}
			// Desk names are unique office-wide, not per room.
			if desks[desk] {
				return fmt.Errorf("room[%d].desks[%d]: duplicate desk '%s'", i, j, desk)
			}
			desks[desk] = true
		}
	}

	teams := make(map[string]bool)
	for i, team := range c.Teams {
		if team.Name == "" {
			return fmt.Errorf("team[%d]: name is required", i)
		}
		if teams[team.Name] {
			return fmt.Errorf("team[%d]: duplicate name '%s'", i, team.Name)
		}
		teams[team.Name] = true

		if team.PreferredRoom != "" && !rooms[team.PreferredRoom] {
			return fmt.Errorf("team[%d]: preferred room '%s' is not declared", i, team.PreferredRoom)
		}
	}

	return nil
}

// RoomByName returns the room declaration with the given name.
func (c *OfficeConfig) RoomByName(name string) *RoomConfig {
	for i := range c.Rooms {
		if c.Rooms[i].Name == name {
			return &c.Rooms[i]
		}
	}
	return nil
}

func (c *OfficeConfig) String() string {
	desks := 0
	for _, r := range c.Rooms {
		desks += len(r.Desks)
	}
	return fmt.Sprintf("OfficeConfig: %d rooms, %d desks, %d teams", len(c.Rooms), desks, len(c.Teams))
}
