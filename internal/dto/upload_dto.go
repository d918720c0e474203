package dto

// UploadResponse carries the fields a client needs to post a file message.
type UploadResponse struct {
	FileURL     string `json:"file_url"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	MessageType string `json:"message_type"`
}
