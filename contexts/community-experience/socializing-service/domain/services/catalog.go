package services

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"gathering/contexts/community-experience/socializing-service/domain/entities"
	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"

	"golang.org/x/text/unicode/norm"
)

const (
	CatalogDateLayout = "2006-01-02"
	CatalogTimeLayout = "15:04"
	DefaultTimeOfDay  = "19:00"
	optionIDPrefix    = "opt-"
	maxCatalogOptions = 200
)

// CatalogInput is the moderator's selection for one option_vote round.
type CatalogInput struct {
	Dates     []string
	Time      string
	Locations []string
}

// BuildCatalog expands dates × locations into options ordered date-major:
// ascending date, then locations in selection order. Ids are assigned
// sequentially as opt-1, opt-2, ... Either set being empty after
// normalisation rejects the whole build.
func BuildCatalog(catalogID string, input CatalogInput) (entities.Catalog, error) {
	if strings.TrimSpace(catalogID) == "" {
		return entities.Catalog{}, domainerrors.ErrInvalidCatalogInput
	}
	dates, err := normalizeDates(input.Dates)
	if err != nil {
		return entities.Catalog{}, err
	}
	locations := NormalizeLocations(input.Locations)
	if len(dates) == 0 || len(locations) == 0 {
		return entities.Catalog{}, domainerrors.ErrInvalidCatalogInput
	}
	if len(dates)*len(locations) > maxCatalogOptions {
		return entities.Catalog{}, domainerrors.ErrInvalidCatalogInput
	}
	timeOfDay, err := normalizeTimeOfDay(input.Time)
	if err != nil {
		return entities.Catalog{}, err
	}

	options := make([]entities.Option, 0, len(dates)*len(locations))
	for _, date := range dates {
		for _, location := range locations {
			options = append(options, entities.Option{
				OptionID: optionIDPrefix + strconv.Itoa(len(options)+1),
				Date:     date,
				Time:     timeOfDay,
				Location: location,
			})
		}
	}
	return entities.Catalog{
		CatalogID: strings.TrimSpace(catalogID),
		Options:   options,
	}, nil
}

// NormalizeLocations trims, NFC-normalises and deduplicates free-text
// locations while keeping selection order.
func NormalizeLocations(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	items := make([]string, 0, len(raw))
	for _, value := range raw {
		value = norm.NFC.String(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		items = append(items, value)
	}
	return items
}

func normalizeDates(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	parsed := make([]time.Time, 0, len(raw))
	for _, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		day, err := time.Parse(CatalogDateLayout, value)
		if err != nil {
			return nil, domainerrors.ErrInvalidCatalogInput
		}
		key := day.Format(CatalogDateLayout)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		parsed = append(parsed, day)
	}
	sort.Slice(parsed, func(i, j int) bool {
		return parsed[i].Before(parsed[j])
	})
	items := make([]string, 0, len(parsed))
	for _, day := range parsed {
		items = append(items, day.Format(CatalogDateLayout))
	}
	return items, nil
}

func normalizeTimeOfDay(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return DefaultTimeOfDay, nil
	}
	parsed, err := time.Parse(CatalogTimeLayout, value)
	if err != nil {
		return "", domainerrors.ErrInvalidCatalogInput
	}
	return parsed.Format(CatalogTimeLayout), nil
}
