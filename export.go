package rasedit

import (
	"fmt"
	"os"

	"github.com/wgdzlh/rasedit/log"
	"github.com/wgdzlh/rasedit/utils"

	gdal "github.com/airbusgeo/godal"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// 导出用的一条记录
type exportRow struct {
	PixelLog
	GroupIndex int
}

// 按扩展名选择输出格式：.gpkg/.shp经OGR写出，.geojson/.json直接写GeoJSON；
// 未识别的扩展名追加defaultExt（为空时为.gpkg）。每条记录输出一个像元大小的方框面。
func (r *Registry) Export(path string, defaultExt ...string) (out string, count int, err error) {
	r.Update()
	logs := r.store.All()
	if len(logs) == 0 {
		err = ErrNothingToExport
		return
	}
	rows := make([]exportRow, len(logs))
	for i, l := range logs {
		rows[i] = exportRow{PixelLog: l, GroupIndex: r.IndexOf(l.Group)}
	}
	out = path
	ext := utils.GetExt(path)
	switch ext {
	case FILE_EXT_GPKG, FILE_EXT_SHP, FILE_EXT_GEOJSON, FILE_EXT_JSON:
	default:
		ext = DEFAULT_EXPORT_EXT
		if len(defaultExt) > 0 && defaultExt[0] != "" {
			ext = defaultExt[0]
		}
		out = path + ext
	}
	log.Info(r.logTag+"start export registry", zap.String("out", out), zap.Int("logs", len(rows)))
	switch ext {
	case FILE_EXT_GEOJSON, FILE_EXT_JSON:
		count, err = r.writeGeoJSON(out, rows)
	case FILE_EXT_SHP:
		count, err = r.writeOgr(out, SHP_DRIVER_NAME, rows)
	case FILE_EXT_GPKG:
		count, err = r.writeOgr(out, GPKG_DRIVER_NAME, rows)
	default:
		err = fmt.Errorf("%w: unsupported extension %q", ErrExportDriver, ext)
	}
	if err != nil {
		log.Error(r.logTag+"export registry failed", zap.String("out", out), zap.Error(err))
		return
	}
	log.Info(r.logTag+"registry exported", zap.String("out", out), zap.Int("total", len(rows)), zap.Int("valid", count))
	return
}

func (r *Registry) writeGeoJSON(out string, rows []exportRow) (count int, err error) {
	fc := geojson.NewFeatureCollection()
	for _, row := range rows {
		f := geojson.NewFeature(r.grid.Footprint(row.Pixel).ToPolygon())
		f.Properties[FIELD_GROUP_INDEX] = row.GroupIndex
		f.Properties[FIELD_OLD_VALUE] = row.OldValue
		f.Properties[FIELD_NEW_VALUE] = row.NewValue
		f.Properties[FIELD_EDIT_DATE] = row.EditDate.Format(EDIT_DATE_LAYOUT)
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		err = eris.Wrapf(ErrExportDriver, "export: marshal geojson: %v", err)
		return
	}
	tmp := utils.GetSiblingTmpPath(out)
	if err = os.WriteFile(tmp, data, 0o644); err != nil {
		err = eris.Wrapf(ErrExportDriver, "export: write %s: %v", out, err)
		return
	}
	if err = os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		err = eris.Wrapf(ErrExportDriver, "export: write %s: %v", out, err)
		return
	}
	count = len(fc.Features)
	return
}

func (r *Registry) createLayer(out, driver string) (ds *gdal.Dataset, layer gdal.Layer, sr *gdal.SpatialRef, err error) {
	log.Info(r.logTag+"output vector file", zap.String("out", out), zap.String("driver", driver))
	if utils.FileExists(out) {
		if err = os.Remove(out); err != nil {
			err = eris.Wrapf(ErrExportDriver, "export: remove old %s: %v", out, err)
			return
		}
	}
	if ds, err = gdal.CreateVector(gdal.DriverName(driver), out); err != nil {
		err = eris.Wrapf(ErrExportDriver, "export: create %s: %v", out, err)
		return
	}
	if r.proj != "" {
		if sr, err = gdal.NewSpatialRefFromWKT(r.proj); err != nil {
			ds.Close()
			err = eris.Wrapf(ErrExportDriver, "export: parse projection: %v", err)
			return
		}
	}
	layer, err = ds.CreateLayer(utils.GetFilenameWithoutExt(out), sr, gdal.GTPolygon,
		gdal.NewFieldDefinition(FIELD_GROUP_INDEX, gdal.FTInt),
		gdal.NewFieldDefinition(FIELD_OLD_VALUE, gdal.FTInt),
		gdal.NewFieldDefinition(FIELD_NEW_VALUE, gdal.FTInt),
		gdal.NewFieldDefinition(FIELD_EDIT_DATE, gdal.FTString),
	)
	if err != nil {
		if sr != nil {
			sr.Close()
		}
		ds.Close()
		err = eris.Wrapf(ErrExportDriver, "export: create layer: %v", err)
	}
	return
}

func (r *Registry) writeOgr(out, driver string, rows []exportRow) (count int, err error) {
	ds, layer, sr, err := r.createLayer(out, driver)
	if err != nil {
		return
	}
	defer func() {
		if sr != nil {
			sr.Close()
		}
		if e := ds.Close(); e != nil && err == nil {
			err = eris.Wrapf(ErrExportDriver, "export: flush %s: %v", out, e)
		}
	}()
	var (
		geo  *gdal.Geometry
		feat *gdal.Feature
		e    error
	)
	for _, row := range rows {
		if geo, e = gdal.NewGeometryFromWKT(BoundToWkt(r.grid.Footprint(row.Pixel)), sr); e != nil {
			log.Error(r.logTag+"err in build pixel footprint", zap.Stringer("pixel", row.Pixel), zap.Error(e))
			continue
		}
		feat, e = layer.NewFeature(geo)
		geo.Close()
		if e != nil {
			log.Error(r.logTag+"err in create feature of layer", zap.Error(e))
			continue
		}
		if e = setExportFields(feat, row); e == nil {
			e = layer.UpdateFeature(feat)
		}
		feat.Close()
		if e != nil {
			log.Error(r.logTag+"err in set fields of feature", zap.Error(e))
			continue
		}
		count++
	}
	return
}

func setExportFields(feat *gdal.Feature, row exportRow) (err error) {
	fields := feat.Fields()
	values := []struct {
		name  string
		value interface{}
	}{
		{FIELD_GROUP_INDEX, row.GroupIndex},
		{FIELD_OLD_VALUE, row.OldValue},
		{FIELD_NEW_VALUE, row.NewValue},
		{FIELD_EDIT_DATE, row.EditDate.Format(EDIT_DATE_LAYOUT)},
	}
	for _, v := range values {
		fld, ok := fields[v.name]
		if !ok {
			return fmt.Errorf("%w: missing field %s", ErrExportDriver, v.name)
		}
		if err = feat.SetFieldValue(fld, v.value); err != nil {
			return
		}
	}
	return
}
