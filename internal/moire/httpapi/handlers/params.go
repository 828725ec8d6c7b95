package handlers

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/moire/internal/moire/system"
)

// paramsFromQuery reads widget state from the query string. Omitted values take
// the defaults of the requested mode; layer keys beyond the stack are ignored.
//
//	mode, render_mode, extent, resolution,
//	twist{1..3}, strain{1..3}, strain_dir{1..3}
func paramsFromQuery(c *gin.Context) (system.Params, error) {
	mode, err := system.ParseMode(c.Query("mode"))
	if err != nil {
		return system.Params{}, err
	}
	rm, err := system.ParseRenderMode(c.Query("render_mode"))
	if err != nil {
		return system.Params{}, err
	}
	p := system.Defaults(mode, rm)

	if err := queryFloat(c, "extent", &p.Extent); err != nil {
		return system.Params{}, err
	}
	res := float64(p.Resolution)
	if err := queryFloat(c, "resolution", &res); err != nil {
		return system.Params{}, err
	}
	if math.IsNaN(res) || math.IsInf(res, 0) {
		return system.Params{}, &system.ParamError{Param: "resolution", Reason: "must be a finite number"}
	}
	p.Resolution = int(math.Round(math.Max(math.Min(res, math.MaxInt32), 0)))

	for i := range p.Layers {
		n := i + 1
		l := &p.Layers[i]
		for _, f := range []struct {
			key string
			dst *float64
		}{
			{fmt.Sprintf("twist%d", n), &l.TwistDeg},
			{fmt.Sprintf("strain%d", n), &l.StrainPercent},
			{fmt.Sprintf("strain_dir%d", n), &l.StrainDirectionDeg},
		} {
			if err := queryFloat(c, f.key, f.dst); err != nil {
				return system.Params{}, err
			}
		}
	}
	return p, nil
}

func queryFloat(c *gin.Context, key string, dst *float64) error {
	raw, ok := c.GetQuery(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return &system.ParamError{Param: key, Reason: fmt.Sprintf("%q is not a number", raw)}
	}
	*dst = v
	return nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &system.ParamError{Param: key, Reason: fmt.Sprintf("%q is not an integer", raw)}
	}
	return v, nil
}
