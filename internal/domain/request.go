package domain

// InfoRequest is the body of POST /api/info
type InfoRequest struct {
	URL string `json:"url"`
}

// DownloadRequest is the body of POST /api/download
type DownloadRequest struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
}

// MediaInfo is the metadata document returned by POST /api/info
type MediaInfo struct {
	Title     string       `json:"title"`
	Uploader  string       `json:"uploader"`
	Duration  string       `json:"duration"` // HH:MM:SS, empty when unknown
	Views     string       `json:"views"`
	Thumbnail string       `json:"thumbnail"`
	Formats   []FormatInfo `json:"formats"`
}

// FormatInfo describes one format variant offered by the source
type FormatInfo struct {
	Quality  string `json:"quality"`
	Ext      string `json:"ext"`
	Size     string `json:"size"`
	FormatID string `json:"format_id"`
}

// FindFormat returns the format with the given id, or nil
func (m *MediaInfo) FindFormat(formatID string) *FormatInfo {
	if m == nil || formatID == "" {
		return nil
	}
	for i := range m.Formats {
		if m.Formats[i].FormatID == formatID {
			return &m.Formats[i]
		}
	}
	return nil
}
