// Package httpapi exposes the session engine over HTTP.
//
// All endpoints speak JSON. Refresh rejections are deliberately
// uninformative: everything except detected token reuse maps to the same
// 401 response.
package httpapi
