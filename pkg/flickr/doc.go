// Package flickr is a small client for the parts of the Flickr REST API the
// mirror needs: photo search with original-file extras, photo detail,
// comment lists and token verification, plus binary downloads from the CDN.
//
// Calls are signed with OAuth 1.0a (HMAC-SHA1) when an access token is
// configured. Every answered call is followed by a courtesy pause; binary
// downloads additionally wait out a single cool-down on 429 before giving up.
package flickr
