package config

import "os"

// StoreConfig locates the on-disk content store
type StoreConfig struct {
	Root string
}

func NewStoreConfig() *StoreConfig {
	root := os.Getenv("STORE_ROOT")
	if root == "" {
		root = "/var/lib/contest/store"
	}
	return &StoreConfig{Root: root}
}
