package report

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/redactyl/scout/internal/types"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool      `json:"tool"`
	Results    []sarifResult  `json:"results"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
	DefaultConfig    sarifConfig  `json:"defaultConfiguration"`
}

type sarifConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           int               `json:"ruleIndex"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLoc        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt     `json:"artifactLocation"`
	Region           *sarifRegion `json:"region,omitempty"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int           `json:"startLine"`
	StartColumn int           `json:"startColumn,omitempty"`
	Snippet     *sarifMessage `json:"snippet,omitempty"`
}

func sevToLevel(s types.Severity) string {
	switch s {
	case types.SevCritical, types.SevHigh:
		return "error"
	case types.SevMed:
		return "warning"
	default:
		return "note"
	}
}

// WriteSARIF writes the result as SARIF 2.1.0. Run counters go into the
// run properties; match hashes become partial fingerprints so code
// scanning can track findings across commits.
func WriteSARIF(w io.Writer, res *types.ScanResult, version string) error {
	if version == "" {
		version = "dev"
	}
	ruleIndex := map[string]int{}
	var ruleList []sarifRule
	byID := map[string]types.Finding{}
	for _, f := range res.Findings {
		if _, ok := byID[f.RuleID]; !ok {
			byID[f.RuleID] = f
		}
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for i, id := range ids {
		f := byID[id]
		desc := f.Description
		if desc == "" {
			desc = id
		}
		ruleIndex[id] = i
		ruleList = append(ruleList, sarifRule{
			ID:               id,
			ShortDescription: sarifMessage{Text: desc},
			DefaultConfig:    sarifConfig{Level: sevToLevel(f.Severity)},
		})
	}

	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: "scout", Version: version, Rules: ruleList}},
		Results: []sarifResult{},
		Properties: map[string]any{
			"stats":    res.Stats,
			"complete": res.Complete,
			"errors":   len(res.Errors),
		},
	}
	for _, f := range res.Findings {
		msg := f.RuleID + " detected"
		if f.Description != "" {
			msg = f.Description
		}
		if f.KeyPath != "" {
			msg += " (" + f.KeyPath + ")"
		}
		loc := sarifPhys{ArtifactLocation: sarifArt{URI: f.Path}}
		if f.Line > 0 {
			loc.Region = &sarifRegion{StartLine: f.Line, StartColumn: f.Column}
			if f.Sample != "" {
				loc.Region.Snippet = &sarifMessage{Text: f.Sample}
			}
		}
		run.Results = append(run.Results, sarifResult{
			RuleID:              f.RuleID,
			RuleIndex:           ruleIndex[f.RuleID],
			Level:               sevToLevel(f.Severity),
			Message:             sarifMessage{Text: msg},
			Locations:           []sarifLoc{{PhysicalLocation: loc}},
			PartialFingerprints: map[string]string{"scoutMatchHash/v1": f.MatchHash},
		})
	}
	doc := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
