package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(target string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		target     string
		wantLimit  int
		wantOffset int
	}{
		{"/", DefaultLimit, 0},
		{"/?limit=50&offset=10", 50, 10},
		{"/?limit=500", MaxLimit, 0},
		{"/?limit=-3&offset=-7", DefaultLimit, 0},
		{"/?limit=abc&offset=xyz", DefaultLimit, 0},
	}
	for _, tt := range tests {
		p := paramsFor(tt.target)
		if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
			t.Errorf("%s: got limit=%d offset=%d, want %d/%d", tt.target, p.Limit, p.Offset, tt.wantLimit, tt.wantOffset)
		}
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	resp := NewResponse([]string{"a"}, 45, Params{Limit: 20, Offset: 20})
	if !resp.HasMore {
		t.Error("expected more results after offset 20 of 45")
	}

	resp = NewResponse([]string{"a"}, 40, Params{Limit: 20, Offset: 20})
	if resp.HasMore {
		t.Error("expected last page")
	}
	if resp.Limit != 20 || resp.Offset != 20 || resp.Total != 40 {
		t.Errorf("unexpected envelope %+v", resp)
	}
}
