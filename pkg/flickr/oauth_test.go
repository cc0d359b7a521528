package flickr

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Reference request from the OAuth 1.0a signing walkthrough published with the Twitter API docs.
func TestSignatureReferenceVector(t *testing.T) {
	params := url.Values{}
	params.Set("status", "Hello Ladies + Gentlemen, a signed OAuth request!")
	params.Set("include_entities", "true")
	params.Set("oauth_consumer_key", "xvz1evFS4wEEPTGEFPHBog")
	params.Set("oauth_nonce", "kYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg")
	params.Set("oauth_signature_method", "HMAC-SHA1")
	params.Set("oauth_timestamp", "1318622958")
	params.Set("oauth_token", "370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb")
	params.Set("oauth_version", "1.0")

	base := signatureBase("post", "https://api.twitter.com/1/statuses/update.json", params)
	assert.True(t, strings.HasPrefix(base, "POST&https%3A%2F%2Fapi.twitter.com%2F1%2Fstatuses%2Fupdate.json&include_entities%3Dtrue%26oauth_consumer_key"))
	assert.Contains(t, base, "status%3DHello%2520Ladies%2520%252B%2520Gentlemen%252C%2520a%2520signed%2520OAuth%2520request%2521")

	sig := signature("POST", "https://api.twitter.com/1/statuses/update.json", params,
		"kAcSOqF21Fu85e7zjz7ZN2U4ZRhfV3WpwPAoE3Z7kBw",
		"LswwdoUaIvS8ltyTt5jkRh4J50vUPVVHtR2YPi5kE")
	assert.Equal(t, "tnnArxj06cWHq44gCs1OSKk/jLY=", sig)
}

func TestSignParams(t *testing.T) {
	creds := Credentials{APIKey: "key", APISecret: "secret", OAuthToken: "tok", OAuthTokenSecret: "toksecret"}
	params := url.Values{"method": {MethodSearch}, "page": {"2"}}

	creds.signParams("GET", "https://api.flickr.com/services/rest/?ignored=1", params, "n0nce", time.Unix(1700000000, 0))

	assert.Equal(t, "key", params.Get("oauth_consumer_key"))
	assert.Equal(t, "n0nce", params.Get("oauth_nonce"))
	assert.Equal(t, "1700000000", params.Get("oauth_timestamp"))
	assert.Equal(t, "1.0", params.Get("oauth_version"))

	sig := params.Get("oauth_signature")
	params.Del("oauth_signature")
	assert.Equal(t, signature("GET", "https://api.flickr.com/services/rest/", params, "secret", "toksecret"), sig)
}

func TestOAuthEscape(t *testing.T) {
	assert.Equal(t, "a%20b%2Bc~d%2A", oauthEscape("a b+c~d*"))
	assert.Equal(t, "https://api.flickr.com/services/rest/", normalizeURL("HTTPS://API.Flickr.com/services/rest/?x=1#f"))
}

func TestNonceUnique(t *testing.T) {
	assert.NotEqual(t, newNonce(), newNonce())
	assert.Len(t, newNonce(), 32)
}
