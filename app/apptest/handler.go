package apptest

import (
	"net/http"
	"net/http/httptest"

	"github.com/advdv/bprovide"
)

// CallProvider runs the pipeline of a bound provider for the given media type and returns the
// recorded response. It skips negotiation, so a provider can be tested on its own.
func CallProvider(p *bprovide.Provider, req *http.Request, mime string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()

	res := p.Serve(rec, req, mime)
	if !res.Ended() {
		panic("apptest: provider did not end the response")
	}

	return rec
}
