package recommender

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FertilizerProfile descrive il range di dosaggio: lo = base + rand*span, idem per hi.
type FertilizerProfile struct {
	Name   string  `yaml:"name"`
	LoBase float64 `yaml:"lo_base"`
	LoSpan float64 `yaml:"lo_span"`
	HiBase float64 `yaml:"hi_base"`
	HiSpan float64 `yaml:"hi_span"`
}

type Catalog struct {
	Crops       []string            `yaml:"crops"`
	Fertilizers []FertilizerProfile `yaml:"fertilizers"`
}

// DefaultCatalog: 22 colture e 6 fertilizzanti del dataset di riferimento.
func DefaultCatalog() Catalog {
	return Catalog{
		Crops: []string{
			"rice", "maize", "jute", "cotton", "coconut", "papaya", "orange", "apple",
			"muskmelon", "watermelon", "grapes", "mango", "banana", "pomegranate",
			"lentil", "blackgram", "mungbean", "mothbeans", "pigeonpeas", "kidneybeans",
			"chickpea", "coffee",
		},
		Fertilizers: []FertilizerProfile{
			{Name: "Urea", LoBase: 10, LoSpan: 10, HiBase: 20, HiSpan: 10},
			{Name: "DAP (Diammonium Phosphate)", LoBase: 20, LoSpan: 15, HiBase: 35, HiSpan: 15},
			{Name: "MOP (Muriate of Potash)", LoBase: 15, LoSpan: 10, HiBase: 25, HiSpan: 10},
			{Name: "10-26-26", LoBase: 30, LoSpan: 20, HiBase: 50, HiSpan: 20},
			{Name: "Single Super Phosphate", LoBase: 40, LoSpan: 25, HiBase: 65, HiSpan: 25},
			{Name: "Ammonium Sulphate", LoBase: 10, LoSpan: 10, HiBase: 20, HiSpan: 10},
		},
	}
}

// Validate verifica che il catalogo basti a riempire le risposte.
func (c Catalog) Validate() error {
	if len(c.Crops) < cropCount {
		return fmt.Errorf("catalog: need at least %d crops, got %d", cropCount, len(c.Crops))
	}
	if len(c.Fertilizers) < fertilizerCount {
		return fmt.Errorf("catalog: need at least %d fertilizers, got %d", fertilizerCount, len(c.Fertilizers))
	}
	seen := make(map[string]bool, len(c.Crops))
	for _, name := range c.Crops {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return errors.New("catalog: empty crop name")
		}
		if seen[key] {
			return fmt.Errorf("catalog: duplicate crop %q", name)
		}
		seen[key] = true
	}
	for _, f := range c.Fertilizers {
		if strings.TrimSpace(f.Name) == "" {
			return errors.New("catalog: empty fertilizer name")
		}
		if f.LoSpan < 0 || f.HiSpan < 0 || f.LoBase < 0 || f.HiBase < f.LoBase {
			return fmt.Errorf("catalog: bad dosage range for %q", f.Name)
		}
	}
	return nil
}

// LoadCatalog legge un catalogo YAML; path vuoto = catalogo predefinito.
func LoadCatalog(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return ParseCatalog(b)
}

func ParseCatalog(b []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Catalog{}, fmt.Errorf("catalog: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}
