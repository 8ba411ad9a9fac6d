package place

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// SRID is the spatial reference of places.geom.
const SRID = 4326

// EncodePoint converts a lat/lng pair to EWKB bytes with SRID 4326.
// Returns nil, nil when either coordinate is missing.
func EncodePoint(lat, lng *float64) ([]byte, error) {
	if lat == nil || lng == nil {
		return nil, nil
	}
	g := geom.NewPointFlat(geom.XY, []float64{*lng, *lat}).SetSRID(SRID)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "place: encode point")
	}
	return data, nil
}
