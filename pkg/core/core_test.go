package core

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func TestScan_Smoke(t *testing.T) {
	isolate(t)
	res, err := Scan(context.Background(), DefaultConfig(), t.TempDir())
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if !res.Complete || len(res.Findings) != 0 {
		t.Fatalf("expected a complete clean result, got %+v", res)
	}
	if res.ExitCode() != 0 {
		t.Fatalf("expected exit 0, got %d", res.ExitCode())
	}
	if len(RuleIDs()) == 0 {
		t.Fatal("expected non-empty rule IDs")
	}
}

func TestScan_FindingsRoundTrip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "id_rsa"), []byte("x\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	res, err := Scan(context.Background(), DefaultConfig(), dir)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(res.Findings) == 0 {
		t.Fatal("expected a finding for id_rsa")
	}
	var buf bytes.Buffer
	if err := WriteFindings(&buf, res.Findings); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := ReadFindings(&buf)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != len(res.Findings) || back[0].MatchHash != res.Findings[0].MatchHash {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestScanGitHub_BadOwner(t *testing.T) {
	if _, err := ScanGitHub(context.Background(), DefaultConfig(), "", "team:x"); err == nil {
		t.Fatal("expected owner parse error")
	}
}

func TestReadFindings_BadLine(t *testing.T) {
	in := bytes.NewBufferString("{\"rule_id\":\"a\",\"path\":\"x\",\"severity\":\"low\",\"match_hash\":\"h\"}\n\nnot json\n")
	if _, err := ReadFindings(in); err == nil {
		t.Fatal("expected decode error on line 3")
	}
}

func TestDecodeResult(t *testing.T) {
	isolate(t)
	res, err := Scan(context.Background(), DefaultConfig(), t.TempDir())
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(res); err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeResult(&buf)
	if err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	if !back.Complete || back.ExitCode() != 0 {
		t.Fatalf("unexpected decoded result %+v", back)
	}
}
