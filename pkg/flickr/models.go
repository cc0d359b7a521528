package flickr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexString decodes a JSON string or number into a string.
// Flickr returns some numeric attributes quoted and others bare.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*s = FlexString(n.String())
	return nil
}

func (s FlexString) String() string { return string(s) }

// FlexInt decodes a JSON number or numeric string into an int
type FlexInt int

func (i *FlexInt) UnmarshalJSON(data []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*i = 0
		return nil
	}
	n, err := strconv.Atoi(string(s))
	if err != nil {
		return fmt.Errorf("flex int %q: %w", string(s), err)
	}
	*i = FlexInt(n)
	return nil
}

// Content is Flickr's {"_content": "..."} text wrapper
type Content struct {
	Content string `json:"_content"`
}

// envelope is the status block present on every REST response
type envelope struct {
	Stat    string  `json:"stat"`
	Code    FlexInt `json:"code"`
	Message string  `json:"message"`
}

// SearchResponse is the flickr.photos.search payload.
// Photos is nil when the answer carried no photos block.
type SearchResponse struct {
	Photos *PhotoPage `json:"photos"`
}

// PhotoPage is one page of search results
type PhotoPage struct {
	Page    FlexInt       `json:"page"`
	Pages   FlexInt       `json:"pages"`
	PerPage FlexInt       `json:"perpage"`
	Total   FlexInt       `json:"total"`
	Photo   []SearchPhoto `json:"photo"`
}

// SearchPhoto is one search hit with the url_o and original_format extras
type SearchPhoto struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	URLOriginal    *string `json:"url_o,omitempty"`
	OriginalFormat *string `json:"originalformat,omitempty"`
}

// InfoResponse is the flickr.photos.getInfo payload
type InfoResponse struct {
	Photo *PhotoInfo `json:"photo"`
}

// PhotoInfo is the detail record for one photo
type PhotoInfo struct {
	ID          string      `json:"id"`
	Title       *Content    `json:"title"`
	Description *Content    `json:"description"`
	Dates       *Dates      `json:"dates"`
	Visibility  *Visibility `json:"visibility"`
	Tags        *TagList    `json:"tags"`
	Location    *Location   `json:"location,omitempty"`
}

// Dates holds the posted and last-update epochs and the taken timestamp
type Dates struct {
	Posted     FlexString `json:"posted"`
	Taken      FlexString `json:"taken"`
	LastUpdate FlexString `json:"lastupdate"`
}

// Visibility flags are "0" or "1"
type Visibility struct {
	IsPublic FlexString `json:"ispublic"`
	IsFriend FlexString `json:"isfriend"`
	IsFamily FlexString `json:"isfamily"`
}

// TagList wraps the tag array
type TagList struct {
	Tag []Tag `json:"tag"`
}

// Tag is a single photo tag. Content is the normalized form.
type Tag struct {
	ID      string `json:"id"`
	Raw     string `json:"raw"`
	Content string `json:"_content"`
}

// Location is present only for geotagged photos
type Location struct {
	Latitude  FlexString `json:"latitude"`
	Longitude FlexString `json:"longitude"`
	Accuracy  FlexString `json:"accuracy"`
}

// CommentsResponse is the flickr.photos.comments.getList payload
type CommentsResponse struct {
	Comments *CommentList `json:"comments"`
}

// CommentList holds the comments of one photo in posting order
type CommentList struct {
	PhotoID string    `json:"photo_id"`
	Comment []Comment `json:"comment"`
}

// Comment is one raw comment record
type Comment struct {
	ID         string     `json:"id"`
	Author     string     `json:"author"`
	AuthorName FlexString `json:"authorname"`
	RealName   FlexString `json:"realname"`
	DateCreate FlexString `json:"datecreate"`
	Permalink  string     `json:"permalink"`
	Content    string     `json:"_content"`
}

// LoginResponse is the flickr.test.login payload
type LoginResponse struct {
	User User `json:"user"`
}

// User identifies the token owner
type User struct {
	ID       string  `json:"id"`
	Username Content `json:"username"`
}
