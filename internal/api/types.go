package api

// User is the profile returned by GET /auth/me.
type User struct {
	ID    int64    `json:"id"`
	Email string   `json:"email"`
	Files []string `json:"files"`
}

// Stats is the aggregate usage returned by GET /files/stats.
type Stats struct {
	TotalFiles int64 `json:"total_files"`
	TotalSize  int64 `json:"total_size"`
}

// PublicLink is the shareable link minted by POST /files/{name}/public-link.
type PublicLink struct {
	FileName    string `json:"filename"`
	PublicToken string `json:"public_token"`
	PublicURL   string `json:"public_url"`
}
