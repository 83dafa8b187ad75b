package raster

import "errors"

var (
	ErrNilRaster = errors.New("raster is nil")
	ErrMalformed = errors.New("malformed raster")
	ErrAlignment = errors.New("rasters are not pixel aligned")
)
