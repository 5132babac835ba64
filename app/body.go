package parley

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/putto11262002/parley/core"
)

const maxBodySize = 1 << 20

var errMalformedBody = core.NewError(core.ErrInvalidInput, "malformed request body")

// decodeBody decodes the JSON body of r into v and validates it.
func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize)).Decode(v); err != nil {
		return errMalformedBody
	}
	return core.Validate(v)
}

// queryInt returns the integer query parameter key, or def when it is absent or malformed.
func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}
