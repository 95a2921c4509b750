package sessions

import (
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// QRSize is the edge length in pixels of generated QR codes.
const QRSize = 256

// Links are the URLs an organizer shares for a session.
type Links struct {
	VoteURL   string `json:"vote_url"`
	ResultURL string `json:"result_url"`
}

// LinksFor builds the voter (/poll/{id}) and result (/result/{id}) URLs under baseURL.
func LinksFor(baseURL, id string) Links {
	base := strings.TrimRight(baseURL, "/")
	slug := url.PathEscape(id)
	return Links{
		VoteURL:   base + "/poll/" + slug,
		ResultURL: base + "/result/" + slug,
	}
}

// QRCode renders the voter URL of a session as a PNG.
func QRCode(baseURL, id string) ([]byte, error) {
	return qrcode.Encode(LinksFor(baseURL, id).VoteURL, qrcode.Medium, QRSize)
}
