package ui

import "html/template"

var pages = template.Must(template.New("layout").Parse(`{{define "layout"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Mixed Style Image Generator</title>
<style>
body { font-family: sans-serif; display: flex; margin: 0; }
aside { width: 360px; padding: 16px; background: #f4f4f4; min-height: 100vh; }
main { flex: 1; padding: 16px; }
h3 { text-align: center; color: #666; font-weight: 300; }
textarea { width: 100%; }
.error { color: #b00020; }
.frame { padding: 20px; border: 2px solid #ccc; border-radius: 10px; background: white; }
.frame img { width: 100%; height: auto; display: block; }
</style>
</head>
<body>
<aside>{{template "form" .}}</aside>
<main>
<h3>Mixed Style Image Generator</h3>
{{template "main" .}}
</main>
</body>
</html>{{end}}

{{define "form"}}
<form method="post" action="/prompts" id="prompts">
<label>Enter what you want to draw
<textarea name="positive" rows="4" placeholder="e.g., a beautiful sunset over mountains">{{.Positive}}</textarea></label>
<label>Enter what you do not want to see
<textarea name="negative" rows="4" placeholder="e.g., extra limbs, bad anatomy, worst quality, low quality">{{.Negative}}</textarea></label>
<label>Seed (empty keeps the workflow's own)
<input type="text" name="seed" value="{{.Seed}}"></label>
<input type="hidden" name="selection" id="selection" value="{{.Selection}}">
{{range .Styles}}
<fieldset><legend>{{.Name}}</legend>
{{range .Substyles}}<label><input type="checkbox" name="substyle" value="{{.Value}}" onchange="track(this)"{{if .Checked}} checked{{end}}> {{.Name}}</label><br>{{end}}
</fieldset>
{{end}}
<button type="submit">Generate Prompts</button>
</form>
<script>
function track(box) {
  var field = document.getElementById("selection");
  var picked = field.value ? field.value.split("\n") : [];
  picked = picked.filter(function (v) { return v !== box.value; });
  if (box.checked) { picked.push(box.value); }
  field.value = picked.join("\n");
}
</script>
{{if .Request}}
<h4>Positive Prompt</h4>
<textarea rows="6" readonly>{{.Request.Positive}}</textarea>
<h4>Negative Prompt</h4>
<textarea rows="6" readonly>{{.Request.Negative}}</textarea>
<form method="post" action="/generate">
<input type="hidden" name="positive" value="{{.Request.Positive}}">
<input type="hidden" name="negative" value="{{.Request.Negative}}">
<input type="hidden" name="seed" value="{{.RequestSeed}}">
<input type="hidden" name="token" value="{{.Request.Token}}">
<button type="submit">Generate Image</button>
</form>
{{end}}
{{end}}

{{define "main"}}
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{with .Outcome}}
{{if eq .Kind "done"}}<div class="frame"><img src="{{$.Image}}" alt="{{.ImagePath}}"></div>
{{else if eq .Kind "submit_failed"}}<p class="error">Failed to queue image generation. Status code: {{.StatusCode}}</p><pre>{{.Body}}</pre>
{{else if eq .Kind "timeout"}}<p class="error">Timeout waiting for image generation</p>
{{else if eq .Kind "display_failed"}}<p class="error">Image generated at {{.ImagePath}} but could not be displayed</p>
{{end}}
{{end}}
{{end}}
`))
