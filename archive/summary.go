package archive

// Summary describes an archive from its header entries alone.
type Summary struct {
	Name            string `json:"name"`
	UUID            string `json:"uuid"`
	CreatorUsername string `json:"creator_username"`
	Type            string `json:"type"`
	ManifestRoot    string `json:"manifest_root"`
	HashFunction    string `json:"hash_function"`
	FileCount       int    `json:"n_files"`
	TotalSize       int64  `json:"total_size"`
}

// Summarise reports the archive's identity and the file count and total
// size recorded in its manifest. It reads no payload data.
func (a *Archive) Summarise() Summary {
	return Summary{
		Name:            a.admin.Name,
		UUID:            a.admin.UUID,
		CreatorUsername: a.admin.CreatorUsername,
		Type:            a.admin.Type,
		ManifestRoot:    a.admin.ManifestRoot,
		HashFunction:    a.manifest.HashFunction,
		FileCount:       a.manifest.Len(),
		TotalSize:       a.manifest.TotalSize(),
	}
}
