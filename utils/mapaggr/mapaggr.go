package mapaggr

import (
	"kavaach/models"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

type aggrUnit struct {
	cnt      int64
	origCell s2.CellID
	reportID string
}

// Aggregator buckets report locations into S2 cells sized for the viewport,
// so the live map sends clusters instead of thousands of raw points.
type Aggregator struct {
	level int
	aggrs map[s2.CellID]*aggrUnit
}

const (
	expectedCells = 160
	minLevel      = 6
	maxLevel      = 16
)

func cellBaseLevel(vp models.ViewPort, center models.Point) int {
	minLL := s2.LatLngFromDegrees(vp.LatMin, vp.LonMin)
	maxLL := s2.LatLngFromDegrees(vp.LatMax, vp.LonMax)

	rect := s2.Rect{
		Lat: r1.Interval{
			Lo: minLL.Lat.Radians(),
			Hi: maxLL.Lat.Radians()},
		Lng: s1.Interval{
			Lo: minLL.Lng.Radians(),
			Hi: maxLL.Lng.Radians()},
	}

	vpArea := rect.Area()

	centerCell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(center.Lat, center.Lon))

	for lv := maxLevel; lv >= minLevel; lv-- {
		cc := s2.CellFromCellID(centerCell.Parent(lv))
		if vpArea/cc.ApproxArea() < expectedCells {
			return lv
		}
	}
	return minLevel // Large enough level
}

func New(vp models.ViewPort, center models.Point) Aggregator {
	return Aggregator{
		level: cellBaseLevel(vp, center),
		aggrs: make(map[s2.CellID]*aggrUnit),
	}
}

func (a *Aggregator) AddPoint(lat, lon float64, reportID string) {
	pc := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon))
	parent := pc.Parent(a.level)
	if _, ok := a.aggrs[parent]; !ok {
		a.aggrs[parent] = &aggrUnit{}
	}
	a.aggrs[parent].cnt += 1
	a.aggrs[parent].origCell = pc
	a.aggrs[parent].reportID = reportID
}

// ToArray renders the clusters. Singleton cells keep the original point
// coordinates and report id; clusters use the cell center.
func (a *Aggregator) ToArray() []models.MapResult {
	r := make([]models.MapResult, 0, len(a.aggrs))
	for c, unit := range a.aggrs {
		ll := c.LatLng()
		reportID := ""
		if unit.cnt == 1 {
			ll = unit.origCell.LatLng()
			reportID = unit.reportID
		}
		r = append(r, models.MapResult{
			Latitude:  ll.Lat.Degrees(),
			Longitude: ll.Lng.Degrees(),
			Count:     unit.cnt,
			ReportID:  reportID,
		})
	}
	return r
}
