package vps

import (
	"strconv"

	iface "VpsClient/interface"
)

// QueryParams builds the scalar form fields of a pose query. mapCode wins over
// mapSetCode; exactly one of them is sent.
func QueryParams(p iface.ProcessedImageData, sel iface.MapSelection) map[string]string {
	params := map[string]string{
		"isRightHanded": "true",
		"fx":            formatFloat(p.Fx),
		"fy":            formatFloat(p.Fy),
		"px":            formatFloat(p.Px),
		"py":            formatFloat(p.Py),
		"width":         strconv.Itoa(p.Width),
		"height":        strconv.Itoa(p.Height),
	}
	if sel.MapCode != "" {
		params["mapCode"] = sel.MapCode
	} else {
		params["mapSetCode"] = sel.MapSetCode
	}
	return params
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 32)
}
