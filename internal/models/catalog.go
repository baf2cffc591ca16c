package models

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ClassInfo describes how a predicted class is presented.
type ClassInfo struct {
	Label       string   `json:"label" yaml:"label"`
	DisplayName string   `json:"displayName" yaml:"display_name"`
	Color       string   `json:"color,omitempty" yaml:"color,omitempty"`
	Aliases     []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// Catalog is the vocabulary of classes returned by the prediction model.
type Catalog struct {
	DefaultColor string      `json:"defaultColor" yaml:"default_color"`
	Classes      []ClassInfo `json:"classes" yaml:"classes"`

	index map[string]int
}

// DefaultCatalog returns the eight cancer types plus the normal tissue class.
func DefaultCatalog() *Catalog {
	c := &Catalog{
		DefaultColor: "gray",
		Classes: []ClassInfo{
			{Label: "Breast", DisplayName: "Breast Cancer", Color: "pink"},
			{Label: "Colorectum", DisplayName: "Colorectum", Color: "purple"},
			{Label: "Esophagus", DisplayName: "Esophagus", Color: "red"},
			{Label: "Liver", DisplayName: "Liver Cancer", Color: "amber"},
			{Label: "Lung", DisplayName: "Lung Cancer", Color: "blue"},
			{Label: "Normal", DisplayName: "Normal Tissue", Color: "green", Aliases: []string{"normal tissue"}},
			{Label: "Ovary", DisplayName: "Ovary", Color: "indigo"},
			{Label: "Pancreas", DisplayName: "Pancreas", Color: "orange"},
			{Label: "Stomach", DisplayName: "Stomach Cancer", Color: "yellow"},
		},
	}
	c.reindex()
	return c
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadCatalogFromReader(file)
}

// LoadCatalogFromReader reads a YAML catalog from r.
func LoadCatalogFromReader(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing class catalog: %w", err)
	}
	for i, cls := range c.Classes {
		if strings.TrimSpace(cls.Label) == "" {
			return nil, fmt.Errorf("class %d: label is required", i)
		}
	}
	c.reindex()
	return &c, nil
}

func (c *Catalog) reindex() {
	c.index = make(map[string]int, len(c.Classes))
	for i, cls := range c.Classes {
		c.index[strings.ToLower(cls.Label)] = i
		for _, a := range cls.Aliases {
			c.index[strings.ToLower(a)] = i
		}
	}
}

// Lookup finds a class by label or alias, ignoring case.
func (c *Catalog) Lookup(class string) (ClassInfo, bool) {
	if c == nil {
		return ClassInfo{}, false
	}
	key := strings.ToLower(class)
	if c.index == nil {
		// catalogs built as literals are scanned instead of indexed
		for _, cls := range c.Classes {
			if strings.ToLower(cls.Label) == key {
				return cls, true
			}
			for _, a := range cls.Aliases {
				if strings.ToLower(a) == key {
					return cls, true
				}
			}
		}
		return ClassInfo{}, false
	}
	i, ok := c.index[key]
	if !ok {
		return ClassInfo{}, false
	}
	return c.Classes[i], true
}

// DisplayName returns the presentation name of a class. Unknown classes
// are returned unchanged.
func (c *Catalog) DisplayName(class string) string {
	if info, ok := c.Lookup(class); ok && info.DisplayName != "" {
		return info.DisplayName
	}
	return class
}

// Color returns the color token of a class.
func (c *Catalog) Color(class string) string {
	if info, ok := c.Lookup(class); ok && info.Color != "" {
		return info.Color
	}
	if c == nil {
		return ""
	}
	return c.DefaultColor
}
