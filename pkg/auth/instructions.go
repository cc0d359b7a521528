package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide explains how to obtain a Flickr API key and OAuth access token
func ShowTokenGuide(w io.Writer) {
	rule := strings.Repeat("=", 80)
	lines := []string{
		rule,
		"FLICKR API ACCESS GUIDE",
		rule,
		"",
		"flickrmirror talks to the Flickr REST API on your behalf. It needs an",
		"application key and, to see private photos, an OAuth access token.",
		"",
		"STEP 1: Create an API key",
		"   - Go to https://www.flickr.com/services/apps/create/",
		"   - Apply for a non-commercial key",
		"   - Note the Key and the Secret",
		"",
		"STEP 2: Authorize the application for your account",
		"   - Use any OAuth 1.0a helper (for example the flickrapi Python package",
		"     or the Flickr API explorer) with the key and secret from step 1",
		"   - Request 'read' permission",
		"   - You will receive an oauth_token and an oauth_token_secret",
		"",
		"STEP 3: Store the token",
		"   flickrmirror auth login",
		"   The token is verified with flickr.test.login and kept in the system",
		"   keychain, or in an encrypted file when no keychain is available.",
		"",
		"ALTERNATIVES:",
		"   - Set FLICKRMIRROR_OAUTH_TOKEN and FLICKRMIRROR_OAUTH_TOKEN_SECRET",
		"   - Put oauth_token / oauth_token_secret in the config file",
		"   - Without a token only public photos of user_id are mirrored",
		"",
		"SECURITY WARNING:",
		"   - The token grants read access to every photo of the account",
		"   - Never share it or commit it to version control",
		"   - Revoke it at https://www.flickr.com/services/auth/list.gne",
		rule,
		"",
	}
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

// ShowQuickGuide prints a condensed hint for experienced users
func ShowQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "\nNeed: API key + secret (flickr.com/services/apps) and an OAuth token + secret with read permission")
	fmt.Fprintln(w, "   Run 'flickrmirror auth login --help-token' for detailed instructions")
}
