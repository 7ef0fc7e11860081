package dto

// UploadTokenResponse is returned by GET /uploads/token.
type UploadTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}
