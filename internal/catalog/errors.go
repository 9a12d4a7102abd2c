package catalog

import "errors"

var errCatalogMissing = errors.New("catalog: metadata.db not found at any candidate path")
