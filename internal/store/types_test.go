package store

import (
	"encoding/json"
	"testing"
	"time"
)

func TestResult_JSONSerialization(t *testing.T) {
	original := &Result{
		ID:           "test-result-123",
		RefPath:      "assets/ref.png",
		DistPath:     "assets/dist.png",
		RefChecksum:  "a1b2c3d4e5f60718",
		DistChecksum: "18f6e5d4c3b2a190",
		Width:        640,
		Height:       480,
		Distance:     1.82,
		Norm3:        0.94,
		PSNR:         34.7,
		ChannelPSNR:  []float64{33.1, 39.8, 41.2},
		Params: CompareParams{
			HFAsymmetry:     0.8,
			XMul:            1.0,
			IntensityTarget: 80,
		},
		Backend:       "vector",
		ElapsedMillis: 125,
		Timestamp:     time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC),
	}

	// Serialize to JSON
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal result: %v", err)
	}

	// Verify JSON is not empty
	if len(data) == 0 {
		t.Fatal("Marshaled JSON is empty")
	}

	// Deserialize from JSON
	var restored Result
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to unmarshal result: %v", err)
	}

	// Verify all fields match
	if restored.ID != original.ID {
		t.Errorf("ID mismatch: expected %s, got %s", original.ID, restored.ID)
	}
	if restored.RefPath != original.RefPath {
		t.Errorf("RefPath mismatch: expected %s, got %s", original.RefPath, restored.RefPath)
	}
	if restored.DistPath != original.DistPath {
		t.Errorf("DistPath mismatch: expected %s, got %s", original.DistPath, restored.DistPath)
	}
	if restored.RefChecksum != original.RefChecksum {
		t.Errorf("RefChecksum mismatch: expected %s, got %s", original.RefChecksum, restored.RefChecksum)
	}
	if restored.DistChecksum != original.DistChecksum {
		t.Errorf("DistChecksum mismatch: expected %s, got %s", original.DistChecksum, restored.DistChecksum)
	}
	if restored.Width != original.Width || restored.Height != original.Height {
		t.Errorf("Geometry mismatch: expected %dx%d, got %dx%d",
			original.Width, original.Height, restored.Width, restored.Height)
	}
	if restored.Distance != original.Distance {
		t.Errorf("Distance mismatch: expected %f, got %f", original.Distance, restored.Distance)
	}
	if restored.Norm3 != original.Norm3 {
		t.Errorf("Norm3 mismatch: expected %f, got %f", original.Norm3, restored.Norm3)
	}
	if restored.PSNR != original.PSNR {
		t.Errorf("PSNR mismatch: expected %f, got %f", original.PSNR, restored.PSNR)
	}
	if len(restored.ChannelPSNR) != len(original.ChannelPSNR) {
		t.Fatalf("ChannelPSNR length mismatch: expected %d, got %d",
			len(original.ChannelPSNR), len(restored.ChannelPSNR))
	}
	for i := range original.ChannelPSNR {
		if restored.ChannelPSNR[i] != original.ChannelPSNR[i] {
			t.Errorf("ChannelPSNR[%d] mismatch: expected %f, got %f",
				i, original.ChannelPSNR[i], restored.ChannelPSNR[i])
		}
	}
	if restored.Params != original.Params {
		t.Errorf("Params mismatch: expected %+v, got %+v", original.Params, restored.Params)
	}
	if restored.Backend != original.Backend {
		t.Errorf("Backend mismatch: expected %s, got %s", original.Backend, restored.Backend)
	}
	if restored.ElapsedMillis != original.ElapsedMillis {
		t.Errorf("ElapsedMillis mismatch: expected %d, got %d", original.ElapsedMillis, restored.ElapsedMillis)
	}
	if !restored.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp mismatch: expected %v, got %v", original.Timestamp, restored.Timestamp)
	}
}

func TestResult_JSONIndented(t *testing.T) {
	result := &Result{
		ID:        "test-result",
		RefPath:   "ref.png",
		DistPath:  "dist.png",
		Width:     32,
		Height:    32,
		Distance:  0.5,
		Norm3:     0.3,
		PSNR:      40.1,
		Timestamp: time.Now(),
	}

	// Serialize with indentation (like FSStore does)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal with indent: %v", err)
	}

	// Verify it's valid JSON and can be unmarshaled
	var restored Result
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to unmarshal indented JSON: %v", err)
	}

	if restored.ID != result.ID {
		t.Errorf("ID mismatch after indented serialization")
	}
}

func TestResult_Validate_Valid(t *testing.T) {
	result := createTestResult("valid-result")

	if err := result.Validate(); err != nil {
		t.Errorf("Valid result should not have validation error: %v", err)
	}
}

func TestResult_Validate_EmptyID(t *testing.T) {
	result := createTestResult("any")
	result.ID = ""

	err := result.Validate()
	if err == nil {
		t.Fatal("Expected validation error for empty ID")
	}

	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("Expected ValidationError, got %T", err)
	}
}

func TestResult_Validate_EmptyPaths(t *testing.T) {
	testCases := []struct {
		name     string
		refPath  string
		distPath string
	}{
		{"empty refPath", "", "dist.png"},
		{"empty distPath", "ref.png", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := createTestResult("test")
			result.RefPath = tc.refPath
			result.DistPath = tc.distPath

			if err := result.Validate(); err == nil {
				t.Fatalf("Expected validation error for %s", tc.name)
			}
		})
	}
}

func TestResult_Validate_NegativeValues(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Result)
	}{
		{"negative width", func(r *Result) { r.Width = -1 }},
		{"negative height", func(r *Result) { r.Height = -1 }},
		{"negative distance", func(r *Result) { r.Distance = -0.1 }},
		{"negative norm3", func(r *Result) { r.Norm3 = -0.1 }},
		{"negative psnr", func(r *Result) { r.PSNR = -0.1 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := createTestResult("test")
			tc.mutate(result)

			if err := result.Validate(); err == nil {
				t.Fatalf("Expected validation error for %s", tc.name)
			}
		})
	}
}

func TestResult_Validate_ZeroTimestamp(t *testing.T) {
	result := createTestResult("test")
	result.Timestamp = time.Time{} // Zero value

	if err := result.Validate(); err == nil {
		t.Fatal("Expected validation error for zero timestamp")
	}
}

func TestResult_ToInfo(t *testing.T) {
	result := createTestResult("info-test")
	info := result.ToInfo()

	if info.ID != result.ID {
		t.Errorf("ID mismatch: expected %s, got %s", result.ID, info.ID)
	}
	if info.RefPath != result.RefPath {
		t.Errorf("RefPath mismatch: expected %s, got %s", result.RefPath, info.RefPath)
	}
	if info.DistPath != result.DistPath {
		t.Errorf("DistPath mismatch: expected %s, got %s", result.DistPath, info.DistPath)
	}
	if info.Distance != result.Distance {
		t.Errorf("Distance mismatch: expected %f, got %f", result.Distance, info.Distance)
	}
	if info.PSNR != result.PSNR {
		t.Errorf("PSNR mismatch: expected %f, got %f", result.PSNR, info.PSNR)
	}
	if !info.Timestamp.Equal(result.Timestamp) {
		t.Errorf("Timestamp mismatch: expected %v, got %v", result.Timestamp, info.Timestamp)
	}
}

func TestResult_IsCompatible_Compatible(t *testing.T) {
	result := createTestResult("compat")

	err := result.IsCompatible(result.RefChecksum, result.DistChecksum, result.Params)
	if err != nil {
		t.Errorf("Matching inputs should not return error: %v", err)
	}
}

func TestResult_IsCompatible_DifferentRefChecksum(t *testing.T) {
	result := createTestResult("compat")

	err := result.IsCompatible("0000000000000000", result.DistChecksum, result.Params)
	if err == nil {
		t.Fatal("Expected compatibility error for different reference checksum")
	}

	if _, ok := err.(*CompatibilityError); !ok {
		t.Errorf("Expected CompatibilityError, got %T", err)
	}
}

func TestResult_IsCompatible_DifferentDistChecksum(t *testing.T) {
	result := createTestResult("compat")

	err := result.IsCompatible(result.RefChecksum, "0000000000000000", result.Params)
	if err == nil {
		t.Fatal("Expected compatibility error for different distorted checksum")
	}
}

func TestResult_IsCompatible_DifferentParams(t *testing.T) {
	result := createTestResult("compat")

	changed := result.Params
	changed.HFAsymmetry = 2.0

	err := result.IsCompatible(result.RefChecksum, result.DistChecksum, changed)
	if err == nil {
		t.Fatal("Expected compatibility error for different parameters")
	}

	if _, ok := err.(*CompatibilityError); !ok {
		t.Errorf("Expected CompatibilityError, got %T", err)
	}
}
