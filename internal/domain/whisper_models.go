package domain

// WhisperModelOption describes one downloadable whisper.cpp model preset.
type WhisperModelOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FileName    string `json:"fileName"`
	URL         string `json:"url"`
	SizeLabel   string `json:"sizeLabel,omitempty"`
	Description string `json:"description,omitempty"`
	Downloaded  bool   `json:"downloaded"`
	LocalPath   string `json:"localPath,omitempty"`
}

// ModelAvailability is the preflight answer for one model. It is derived on
// every query and never cached.
type ModelAvailability struct {
	ModelName string `json:"modelName"`
	IsCached  bool   `json:"isCached"`
	CacheDir  string `json:"cacheDir"`
	LocalPath string `json:"localPath,omitempty"`
}
