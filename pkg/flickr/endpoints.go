package flickr

import (
	"net/url"
	"strconv"
)

const (
	// DefaultEndpoint is the Flickr REST endpoint
	DefaultEndpoint = "https://api.flickr.com/services/rest/"

	MethodSearch      = "flickr.photos.search"
	MethodGetInfo     = "flickr.photos.getInfo"
	MethodGetComments = "flickr.photos.comments.getList"
	MethodTestLogin   = "flickr.test.login"

	// MaxPerPage is the largest page size flickr.photos.search accepts
	MaxPerPage = 500

	// OriginalExtras asks search to include the original file URL and format
	OriginalExtras = "url_o,original_format"

	// DefaultFormat is assumed when a photo carries no original_format
	DefaultFormat = "jpg"

	// UserMe resolves to the token owner
	UserMe = "me"
)

// SearchParams builds the query for one page of a user's photos
func SearchParams(userID string, page, perPage int) url.Values {
	if userID == "" {
		userID = UserMe
	}
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("user_id", userID)
	params.Set("extras", OriginalExtras)
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	return params
}

// PhotoParams builds the query for a single-photo method
func PhotoParams(photoID string) url.Values {
	params := url.Values{}
	params.Set("photo_id", photoID)
	return params
}
