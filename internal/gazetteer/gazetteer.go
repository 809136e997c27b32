// Package gazetteer imports Census ZCTA reference data: interior points and
// land area from the gazetteer file, population from the ACS API, and
// polygon extents from the TIGER shapefile.
package gazetteer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/fetcher"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/store"
)

// Importer builds the zip_tiles reference table from Census sources.
type Importer struct {
	http  fetcher.Fetcher
	ftp   *fetcher.FTPFetcher
	store store.Store
	cfg   config.GazetteerConfig
}

// NewImporter wires an Importer from config.
func NewImporter(st store.Store, cfg config.GazetteerConfig) *Importer {
	return &Importer{
		http:  fetcher.NewHTTPFetcher(fetcher.HTTPOptions{RateLimiters: fetcher.DefaultRateLimiters()}),
		ftp:   fetcher.NewFTPFetcher(fetcher.FTPOptions{}),
		store: st,
		cfg:   cfg,
	}
}

// Import downloads the gazetteer file, enriches it with population and
// shapefile extents when configured, and upserts the result. Returns the
// number of tiles written. Re-running refreshes tiles in place.
func (i *Importer) Import(ctx context.Context) (int, error) {
	if err := os.MkdirAll(i.cfg.TempDir, 0o755); err != nil {
		return 0, eris.Wrap(err, "gazetteer: create temp dir")
	}

	tiles, err := i.importGazetteer(ctx)
	if err != nil {
		return 0, err
	}
	zap.L().Info("gazetteer parsed", zap.Int("tiles", len(tiles)))

	if i.cfg.PopulationURL != "" {
		pops, err := i.fetchPopulation(ctx)
		if err != nil {
			return 0, err
		}
		for idx := range tiles {
			tiles[idx].Population = pops[tiles[idx].Zip]
		}
		zap.L().Info("population joined", zap.Int("zips", len(pops)))
	}

	if i.cfg.ShapefileURL != "" {
		extents, err := i.importShapefile(ctx)
		if err != nil {
			// The gazetteer interior points are a workable fallback, so a
			// shapefile failure degrades rather than aborts.
			zap.L().Warn("shapefile import failed, using gazetteer points only", zap.Error(err))
		} else {
			refined := 0
			for idx := range tiles {
				if ext, ok := extents[tiles[idx].Zip]; ok {
					tiles[idx].Latitude = ext.Latitude
					tiles[idx].Longitude = ext.Longitude
					tiles[idx].RadiusMeters = ext.RadiusMeters
					refined++
				}
			}
			zap.L().Info("tile extents refined from shapefile", zap.Int("refined", refined))
		}
	}

	if _, err := i.store.InsertZipTiles(ctx, tiles); err != nil {
		return 0, eris.Wrap(err, "gazetteer: insert tiles")
	}
	return len(tiles), nil
}

func (i *Importer) importGazetteer(ctx context.Context) ([]model.ZipTile, error) {
	zipPath := filepath.Join(i.cfg.TempDir, "gazetteer.zip")
	if _, err := i.http.DownloadToFile(ctx, i.cfg.GazetteerURL, zipPath); err != nil {
		return nil, eris.Wrap(err, "gazetteer: download")
	}

	txtPath, err := fetcher.ExtractZIPSingle(zipPath, i.cfg.TempDir)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(txtPath)
	if err != nil {
		return nil, eris.Wrap(err, "gazetteer: open extracted file")
	}
	defer f.Close() //nolint:errcheck

	return ParseGazetteer(ctx, f)
}

func (i *Importer) importShapefile(ctx context.Context) (map[string]shapeExtent, error) {
	zipPath := filepath.Join(i.cfg.TempDir, "zcta_shapefile.zip")

	var err error
	if strings.HasPrefix(i.cfg.ShapefileURL, "ftp://") {
		_, err = i.ftp.DownloadToFile(ctx, i.cfg.ShapefileURL, zipPath)
	} else {
		_, err = i.http.DownloadToFile(ctx, i.cfg.ShapefileURL, zipPath)
	}
	if err != nil {
		return nil, eris.Wrap(err, "gazetteer: download shapefile")
	}

	extracted, err := fetcher.ExtractZIP(zipPath, i.cfg.TempDir)
	if err != nil {
		return nil, err
	}
	for _, path := range extracted {
		if strings.HasSuffix(path, ".shp") {
			return ParseShapefile(path)
		}
	}
	return nil, eris.New("gazetteer: archive contains no .shp file")
}
