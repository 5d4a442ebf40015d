package app

import "mime"

func init() {
	// Some minimal container images ship without /etc/mime.types.
	_ = mime.AddExtensionType(".css", "text/css; charset=utf-8")
	_ = mime.AddExtensionType(".js", "text/javascript; charset=utf-8")
}
