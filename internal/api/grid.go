package api

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/insightdeck/insightdeck/config"
	"github.com/insightdeck/insightdeck/internal/dataset"
	"github.com/insightdeck/insightdeck/pkg/httperr"
	"github.com/insightdeck/insightdeck/pkg/pagination"
	"github.com/insightdeck/insightdeck/pkg/validation"
)

type rowsParams struct {
	Cursor string `validate:"omitempty,cursor"`
	Sort   string
	Dir    string `validate:"sortdir"`
}

type rowsResponse struct {
	Rows       []dataset.Record `json:"rows"`
	TotalRows  int              `json:"totalRows"`
	Offset     int              `json:"offset"`
	PageSize   int              `json:"pageSize"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

// getRows serves one fixed-size page of the filtered dataset, optionally
// sorted. Cursors pin the sort and the dataset version they were issued
// against; replacing or resetting the dataset invalidates them.
func (s *Server) getRows(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	params := rowsParams{
		Cursor: strings.TrimSpace(q.Get("cursor")),
		Sort:   strings.TrimSpace(q.Get("sort")),
		Dir:    strings.TrimSpace(q.Get("dir")),
	}
	if msg := validation.ValidateStruct(params); msg != "" {
		httperr.Write(w, httperr.Validation, msg)
		return
	}

	view := sess.Snapshot()

	offset := 0
	pageSize := config.GridPageSize
	sortField := params.Sort
	dir := pagination.Direction(strings.ToLower(params.Dir))
	if dir == "" {
		dir = pagination.Asc
	}

	if params.Cursor != "" {
		c, err := pagination.Decode(params.Cursor)
		if err != nil {
			httperr.Write(w, httperr.CursorInvalid, "")
			return
		}
		if c.Sid != sess.ID {
			httperr.Write(w, httperr.CursorInvalid, "cursor belongs to a different session")
			return
		}
		if c.Dv != view.Version {
			httperr.Write(w, httperr.CursorInvalid, "dataset changed; restart pagination from the first page")
			return
		}
		offset = c.Off
		pageSize = c.Ps
		sortField = c.Sf
		if c.Sd != "" {
			dir = c.Sd
		}
	}

	records := view.Records
	if sortField != "" {
		fld, found := fieldByName(view.Fields, sortField)
		if !found {
			httperr.Wrapf(w, httperr.Validation, "unknown sort field %q", sortField)
			return
		}
		records = sortRecords(records, fld, dir == pagination.Desc)
	}

	total := len(records)
	if offset > total {
		offset = total
	}
	end := offset + pageSize
	if end > total {
		end = total
	}

	resp := rowsResponse{
		Rows:      records[offset:end],
		TotalRows: total,
		Offset:    offset,
		PageSize:  pageSize,
	}
	if resp.Rows == nil {
		resp.Rows = []dataset.Record{}
	}

	if end < total {
		token, err := pagination.Encode(pagination.Cursor{
			V:   1,
			Sid: sess.ID,
			Dv:  view.Version,
			Off: pagination.NextOffset(offset, pageSize),
			Ps:  pageSize,
			Sf:  sortField,
			Sd:  dir,
			Iat: time.Now().Unix(),
		})
		if err != nil {
			httperr.Write(w, httperr.Internal, "failed to encode next page cursor")
			return
		}
		resp.NextCursor = token
	}

	writeJSON(w, http.StatusOK, resp)
}

func fieldByName(fields []dataset.Field, name string) (dataset.Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return dataset.Field{}, false
}

// sortRecords returns a sorted copy; the input snapshot stays untouched.
// Numeric columns compare by coerced value, everything else byte-order on
// the lowercased text. The sort is stable so equal keys keep ingestion order.
func sortRecords(records []dataset.Record, fld dataset.Field, desc bool) []dataset.Record {
	out := make([]dataset.Record, len(records))
	copy(out, records)

	less := func(a, b dataset.Record) bool {
		if fld.Numeric {
			return cast.ToFloat64(strings.TrimSpace(a[fld.Name])) < cast.ToFloat64(strings.TrimSpace(b[fld.Name]))
		}
		return strings.ToLower(a[fld.Name]) < strings.ToLower(b[fld.Name])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}
