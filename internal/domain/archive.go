package domain

import "time"

// ExportedArchive is the ArchiveExporter output.
type ExportedArchive struct {
	FileName    string
	Data        []byte
	Manifest    Manifest
	Checksum    string
	GeneratedAt time.Time
}

// Manifest is the structured record written to project_info.json.
// It must never carry credentials.
type Manifest struct {
	ProjectName         string              `json:"project_name"`
	HDLLanguage         Dialect             `json:"hdl_language"`
	DesignUnit          string              `json:"design_unit"`
	DesignUnitExtracted bool                `json:"design_unit_extracted"`
	Provider            string              `json:"provider"`
	Model               string              `json:"model,omitempty"`
	GeneratedBy         string              `json:"generated_by"`
	GeneratedAt         string              `json:"generated_at"`
	Validated           bool                `json:"validated"`
	HasTestbench        bool                `json:"has_testbench"`
	Compilation         ManifestCompilation `json:"compilation"`
	Counts              StructuralCounts    `json:"counts"`
	SourceSHA256        string              `json:"source_sha256"`
	Artifacts           []ManifestArtifact  `json:"artifacts"`
}

// ManifestCompilation summarizes a CompilationOutcome.
type ManifestCompilation struct {
	State       CompilationState `json:"state"`
	Success     bool             `json:"success"`
	Attempted   bool             `json:"attempted"`
	Toolchain   string           `json:"toolchain,omitempty"`
	FailedStep  string           `json:"failed_step,omitempty"`
	DurationMS  int64            `json:"duration_ms"`
	Summary     string           `json:"summary"`
	Diagnostics string           `json:"diagnostics,omitempty"`
}

// ManifestArtifact describes one compiled artifact entry.
type ManifestArtifact struct {
	Name   string `json:"name"`
	Size   int    `json:"size"`
	SHA256 string `json:"sha256"`
}

// ResultMetadata is the flat record handed back to the HTTP layer.
type ResultMetadata struct {
	RequestID          string           `json:"request_id"`
	CircuitName        string           `json:"circuit_name"`
	HDLLanguage        Dialect          `json:"hdl_language"`
	DesignUnit         string           `json:"design_unit"`
	ProviderUsed       string           `json:"provider_used"`
	ModelUsed          string           `json:"model_used,omitempty"`
	CompilationSuccess bool             `json:"compilation_success"`
	CompilationState   CompilationState `json:"compilation_state"`
	Counts             StructuralCounts `json:"code_stats"`
	HasTestbench       bool             `json:"has_testbench"`
	Usage              *Usage           `json:"usage,omitempty"`
	FileName           string           `json:"file_name"`
	FileSize           int              `json:"file_size"`
	Checksum           string           `json:"checksum"`
	ArchiveID          string           `json:"archive_id,omitempty"`
	Attempts           int              `json:"attempts"`
	DurationMS         int64            `json:"duration_ms"`
}
