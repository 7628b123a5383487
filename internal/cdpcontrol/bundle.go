package cdpcontrol

import (
	_ "embed"
	"encoding/json"

	"github.com/dgnsrekt/twintype/internal/provider"
)

// notifyBinding is the page global the bundle calls to reach the controller.
const notifyBinding = "__twintypeNotify"

//go:embed bundle.js
var bundleSource string

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func buildIIFE(body string) string {
	return `(function(){
try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:"` + CodeEvalFailure + `",error_message:String(err && err.message || err)});
}
})()`
}

// jsInstall installs (or replaces) the page bundle for a provider.
func jsInstall(name provider.Name) string {
	return buildIIFE(`return (` + bundleSource + `)(` + jsString(string(name)) + `);`)
}

// jsCall invokes a bundle primitive and wraps the result in the eval envelope.
func jsCall(fn string, args []any) string {
	if args == nil {
		args = []any{}
	}
	return buildIIFE(`var b = window.__twintype;
if (!b || typeof b.call !== "function") {
return JSON.stringify({ok:false,error_code:"` + CodeNoReceiver + `",error_message:"page bundle missing"});
}
return JSON.stringify({ok:true,data:b.call(` + jsString(fn) + `, ` + jsJSON(args) + `)});`)
}
