package report

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestWriteSARIF_Structure(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSARIF(&buf, sampleResult(), "1.2.3"); err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Version string `json:"version"`
		Runs    []struct {
			Properties map[string]any `json:"properties"`
			Tool       struct {
				Driver struct {
					Name    string `json:"name"`
					Version string `json:"version"`
					Rules   []struct {
						ID string `json:"id"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			Results []struct {
				RuleID              string            `json:"ruleId"`
				RuleIndex           int               `json:"ruleIndex"`
				Level               string            `json:"level"`
				PartialFingerprints map[string]string `json:"partialFingerprints"`
				Locations           []struct {
					PhysicalLocation struct {
						ArtifactLocation struct {
							URI string `json:"uri"`
						} `json:"artifactLocation"`
						Region struct {
							StartLine int `json:"startLine"`
							Snippet   struct {
								Text string `json:"text"`
							} `json:"snippet"`
						} `json:"region"`
					} `json:"physicalLocation"`
				} `json:"locations"`
			} `json:"results"`
		} `json:"runs"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v; body=%s", err, buf.String())
	}
	if doc.Version != "2.1.0" || len(doc.Runs) != 1 {
		t.Fatalf("unexpected envelope: %+v", doc)
	}
	run := doc.Runs[0]
	if run.Tool.Driver.Name != "scout" || run.Tool.Driver.Version != "1.2.3" {
		t.Fatalf("unexpected driver: %+v", run.Tool.Driver)
	}
	// rules are sorted by id; results link back through ruleIndex
	if len(run.Tool.Driver.Rules) != 2 || run.Tool.Driver.Rules[0].ID != "config-plaintext-password" {
		t.Fatalf("unexpected rules: %+v", run.Tool.Driver.Rules)
	}
	if len(run.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(run.Results))
	}
	first := run.Results[0]
	if first.RuleID != "github-token" || first.RuleIndex != 1 || first.Level != "error" {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.PartialFingerprints["scoutMatchHash/v1"] != "h1" {
		t.Fatalf("expected match hash fingerprint, got %v", first.PartialFingerprints)
	}
	region := first.Locations[0].PhysicalLocation.Region
	if region.StartLine != 1 || region.Snippet.Text != "ghp_…abcd" {
		t.Fatalf("unexpected region: %+v", region)
	}
	if _, ok := run.Properties["stats"]; !ok {
		t.Fatalf("expected stats in properties: %v", run.Properties)
	}
}
