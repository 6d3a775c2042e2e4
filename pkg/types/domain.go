package types

// AssetRole identifies which of the resident model assets a file provides.
type AssetRole string

const (
	RoleTextEncoder AssetRole = "text_encoder"
	RoleBackbone    AssetRole = "backbone"
	RoleUpscaler    AssetRole = "upscaler"
)

// Asset represents one materialized model asset on local disk.
type Asset struct {
	// Role of the asset within the pipeline.
	// example: backbone
	Role AssetRole `json:"role" example:"backbone"`
	// Absolute path to the weights file on disk.
	// example: /srv/assets/ltxv-backbone-distilled.safetensors
	Path string `json:"path" example:"/srv/assets/ltxv-backbone-distilled.safetensors"`
	// File size in MB, used for device budget accounting.
	// example: 2048
	SizeMB int `json:"size_mb" example:"2048"`
}

// FrameSequence is the decoded pixel output of a job: ordered RGB frames plus
// frame-rate metadata. It is handed to the encoder collaborator and released.
type FrameSequence struct {
	Width     int
	Height    int
	FrameRate int
	// Frames holds Width*Height*3 bytes per entry, RGB row-major.
	Frames [][]byte
}

// FrameCount returns the number of decoded frames.
func (fs *FrameSequence) FrameCount() int { return len(fs.Frames) }
