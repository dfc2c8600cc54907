package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"gopkg.in/yaml.v3"
)

const DefaultPartnerSlug = "default"

type partnersFile struct {
	Default  string            `yaml:"default"`
	Partners []*domain.Partner `yaml:"partners"`
}

// PartnerRegistry is a read-only set of white-label partners loaded at startup
type PartnerRegistry struct {
	partners    map[string]*domain.Partner
	defaultSlug string
}

func defaultPartner() *domain.Partner {
	return &domain.Partner{
		Slug:           DefaultPartnerSlug,
		Name:           "KPR",
		PrimaryColor:   "#F15A23",
		SecondaryColor: "#005E6A",
	}
}

// LoadPartnerRegistry reads partners from a YAML file. A missing file yields
// a registry with only the built-in default partner.
func LoadPartnerRegistry(path string) (*PartnerRegistry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewPartnerRegistry(nil, "")
	}
	if err != nil {
		return nil, fmt.Errorf("read partners file: %w", err)
	}
	return ParsePartnerRegistry(data)
}

func ParsePartnerRegistry(data []byte) (*PartnerRegistry, error) {
	var f partnersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse partners file: %w", err)
	}
	return NewPartnerRegistry(f.Partners, f.Default)
}

func NewPartnerRegistry(partners []*domain.Partner, defaultSlug string) (*PartnerRegistry, error) {
	r := &PartnerRegistry{partners: make(map[string]*domain.Partner, len(partners)+1)}
	for _, p := range partners {
		if p == nil {
			continue
		}
		slug := strings.ToLower(strings.TrimSpace(p.Slug))
		if slug == "" {
			return nil, errors.New("partner without slug")
		}
		if _, dup := r.partners[slug]; dup {
			return nil, fmt.Errorf("duplicate partner %q", slug)
		}
		if t := p.ScoreThreshold; t != nil && (*t < 0 || *t > 1) {
			return nil, fmt.Errorf("partner %q: score_threshold must be between 0 and 1", slug)
		}
		cp := *p
		cp.Slug = slug
		r.partners[slug] = &cp
	}

	if _, ok := r.partners[DefaultPartnerSlug]; !ok {
		r.partners[DefaultPartnerSlug] = defaultPartner()
	}
	r.defaultSlug = DefaultPartnerSlug
	if defaultSlug != "" {
		ds := strings.ToLower(strings.TrimSpace(defaultSlug))
		if _, ok := r.partners[ds]; !ok {
			return nil, fmt.Errorf("default partner %q not defined", ds)
		}
		r.defaultSlug = ds
	}
	return r, nil
}

// Get returns the partner for slug, or the default partner when unknown
func (r *PartnerRegistry) Get(slug string) *domain.Partner {
	if p, ok := r.partners[strings.ToLower(strings.TrimSpace(slug))]; ok {
		return p
	}
	return r.partners[r.defaultSlug]
}

func (r *PartnerRegistry) List() []*domain.Partner {
	out := make([]*domain.Partner, 0, len(r.partners))
	for _, p := range r.partners {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}
