package parameters

import "fmt"

// DefaultParameters returns the seed data for a fresh portal database:
// the region list, the membership kinds, and the export settings.
func DefaultParameters() []*Parameter {
	regions := []string{
		"groningen",
		"friesland",
		"drenthe",
		"overijssel",
		"flevoland",
		"gelderland",
		"utrecht",
		"noord-holland",
		"zuid-holland",
		"zeeland",
		"noord-brabant",
		"limburg",
	}

	kinds := []struct {
		name, value, description string
	}{
		{"full", "lid", "Gewoon lidmaatschap"},
		{"family", "gezinslid", "Gezinslid op hetzelfde adres"},
		{"donor", "donateur", "Donateur zonder stemrecht"},
		{"honorary", "erelid", "Erelid, benoemd door de ALV"},
	}

	params := make([]*Parameter, 0, len(regions)+len(kinds)+2)
	for i, region := range regions {
		params = append(params, &Parameter{
			Category:  CategoryRegions,
			Name:      fmt.Sprintf("region_%02d", i+1),
			Value:     region,
			SortOrder: i + 1,
		})
	}
	for i, kind := range kinds {
		params = append(params, &Parameter{
			Category:    CategoryMembershipKinds,
			Name:        kind.name,
			Value:       kind.value,
			Description: kind.description,
			SortOrder:   i + 1,
		})
	}

	params = append(params,
		&Parameter{
			Category:    CategoryExport,
			Name:        "s3_prefix",
			Value:       "exports",
			Description: "Key prefix for export objects in the bucket",
			SortOrder:   1,
		},
		&Parameter{
			Category:    CategoryExport,
			Name:        "retention_days",
			Value:       "90",
			Description: "Days before exported files may be cleaned up",
			SortOrder:   2,
		},
	)

	return params
}
