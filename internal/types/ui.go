package types

// Websocket payloads pushed to UI clients. []byte fields are base64
// in the JSON encoding.

type UIConfig struct {
	Type           string `json:"type"`
	Transform      string `json:"transform"`
	RowDuplication int    `json:"row_duplication"`
	Workers        int    `json:"workers"`
}

type UIRow struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Width int    `json:"width"`
	RGBA  []byte `json:"rgba"`
}

type UIRaster struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	RGBA   []byte `json:"rgba"`
}

type UIError struct {
	Type    string `json:"type"`
	Index   int    `json:"index,omitempty"`
	Message string `json:"message"`
}
