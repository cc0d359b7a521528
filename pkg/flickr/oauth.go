package flickr

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Credentials authenticate REST calls. Without a token only public data is visible.
type Credentials struct {
	APIKey           string
	APISecret        string
	OAuthToken       string
	OAuthTokenSecret string
}

// HasToken reports whether calls will be OAuth-signed
func (c Credentials) HasToken() bool {
	return c.OAuthToken != "" && c.OAuthTokenSecret != ""
}

// signParams adds the OAuth 1.0a protocol parameters and HMAC-SHA1 signature to params
func (c Credentials) signParams(method, endpoint string, params url.Values, nonce string, now time.Time) {
	params.Set("oauth_consumer_key", c.APIKey)
	params.Set("oauth_nonce", nonce)
	params.Set("oauth_signature_method", "HMAC-SHA1")
	params.Set("oauth_timestamp", strconv.FormatInt(now.Unix(), 10))
	params.Set("oauth_token", c.OAuthToken)
	params.Set("oauth_version", "1.0")
	params.Del("oauth_signature")

	params.Set("oauth_signature", signature(method, endpoint, params, c.APISecret, c.OAuthTokenSecret))
}

// signature computes the base64 HMAC-SHA1 of the signature base string
func signature(method, endpoint string, params url.Values, consumerSecret, tokenSecret string) string {
	key := oauthEscape(consumerSecret) + "&" + oauthEscape(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(signatureBase(method, endpoint, params)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func signatureBase(method, endpoint string, params url.Values) string {
	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(params))
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, pair{oauthEscape(k), oauthEscape(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k == pairs[j].k {
			return pairs[i].v < pairs[j].v
		}
		return pairs[i].k < pairs[j].k
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}

	return strings.ToUpper(method) + "&" +
		oauthEscape(normalizeURL(endpoint)) + "&" +
		oauthEscape(strings.Join(parts, "&"))
}

// normalizeURL drops the query and fragment from the request URL
func normalizeURL(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// oauthEscape percent-encodes per RFC 3986 (space as %20, ~ unreserved)
func oauthEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func newNonce() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b)
}
