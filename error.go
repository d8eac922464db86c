package rasedit

import "errors"

var (
	ErrInvalidTif      = errors.New("invalid tif")
	ErrTifReadFailed   = errors.New("tif read failed")
	ErrWrongRasterBand = errors.New("wrong raster band")
	ErrNoGeoTransform  = errors.New("raster without geotransform")
	ErrRotatedRaster   = errors.New("rotated raster not supported")
	ErrWrongBufferSize = errors.New("wrong buffer size")
	ErrCellOutOfRange  = errors.New("cell out of raster range")

	ErrNotEditing = errors.New("raster is not in edit mode")
	ErrEditOpen   = errors.New("raster edit session already open")
	ErrEditDenied = errors.New("raster edit session could not be opened")
	ErrCellWrite  = errors.New("raster cell write failed")
	ErrBandWrite  = errors.New("raster band write failed")

	ErrNoStyle         = errors.New("raster style has no classes")
	ErrNonIntegerClass = errors.New("non-integer class value in style")
	ErrMalformedColor  = errors.New("malformed class color in style")
	ErrDuplicateClass  = errors.New("duplicate class value in style")
	ErrUnknownClass    = errors.New("class value not in recode table")

	ErrNoActiveTarget = errors.New("no raster is the active edit target")
	ErrUnknownTarget  = errors.New("unknown edit target")
	ErrNothingToApply = errors.New("recode table has nothing to apply")
	ErrUnknownGesture = errors.New("unknown gesture kind")
	ErrWrongGeoType   = errors.New("wrong geo type")

	ErrNothingToExport = errors.New("registry has nothing to export")
	ErrExportDriver    = errors.New("registry export driver err")

	ErrStateMismatch = errors.New("session state belongs to another raster")
)
