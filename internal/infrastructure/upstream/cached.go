package upstream

import "bytes"

// Cached entries are stored as "<content type>\n<body>".

func encodeCached(r *Response) []byte {
	out := make([]byte, 0, len(r.ContentType)+1+len(r.Body))
	out = append(out, r.ContentType...)
	out = append(out, '\n')
	return append(out, r.Body...)
}

func decodeCached(raw []byte) *Response {
	contentType, body, found := bytes.Cut(raw, []byte{'\n'})
	if !found {
		return &Response{StatusCode: 200, Body: raw}
	}
	return &Response{StatusCode: 200, ContentType: string(contentType), Body: body}
}
