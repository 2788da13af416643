package types

// NoFunction is reported for results that do not belong to a function.
const NoFunction = "N/A"

// Result is a single retrieved fragment.
type Result struct {
	Rank         int     `json:"rank"` // 1-based position in the result set
	SourcePath   string  `json:"source_path"`
	FileType     string  `json:"file_type"`
	FunctionName string  `json:"function_name"`
	ChunkIndex   int     `json:"chunk_index"`
	Score        float64 `json:"score"`
	Content      string  `json:"content"`
}
