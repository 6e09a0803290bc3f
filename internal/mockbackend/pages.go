package mockbackend

import "html/template"

var pageTemplates = template.Must(template.New("pages").Parse(`
{{define "step1"}}<!doctype html>
<html><head><title>Step 1 - Upload Data</title></head>
<body>
<ul class="steps"><li class="step step-primary" data-step="1">Upload Data</li><li class="step" data-step="2">Edit Prompt</li><li class="step" data-step="3">Generate Videos</li></ul>
<form id="upload-form" method="post" enctype="multipart/form-data" action="{{.UploadPath}}">
<input type="text" name="project_name" placeholder="Untitled Project">
<div id="upload-area"><input type="file" id="data_file" name="data_file" accept=".csv,.xls,.xlsx"></div>
</form>
<div id="error-message" class="hidden"></div>
</body></html>
{{end}}

{{define "step2"}}<!doctype html>
<html><head><title>Step 2 - Edit Prompt</title></head>
<body>
<h1>{{.Project.Name}}</h1>
<div class="fields">{{range .Project.Columns}}<button class="badge field-btn" data-field="{{.}}">{{"{{"}}{{.}}{{"}}"}}</button>{{end}}</div>
<textarea id="prompt-editor">{{.Project.Template}}</textarea>
<div id="error-message" class="hidden"><span id="error-text"></span></div>
<script>
window.projectId = {{.Project.ID}};
window.fields = {{.Project.Columns}};
</script>
</body></html>
{{end}}

{{define "step3"}}<!doctype html>
<html><head><title>Step 3 - Generate Videos</title></head>
<body>
<h1>{{.Project.Name}}</h1>
{{if not .Items}}<button id="start-generation-btn">Start Generating Videos</button>{{end}}
<div id="videos-grid">
{{range .Items}}<div class="video-card card" data-video-id="{{.ID}}" data-status="{{.Status}}" data-row-index="{{.RowIndex}}">
<span class="badge">{{.Status}}</span>
<div class="aspect-video">{{if .VideoURL}}<video controls><source src="{{.VideoURL}}" type="video/mp4"></video>{{end}}</div>
<div class="video-info"><p class="video-prompt">{{.Prompt}}</p>{{if .Error}}<p class="error-text">{{.Error}}</p>{{end}}</div>
</div>
{{end}}</div>
<script>
window.projectId = {{.Project.ID}};
window.totalRows = {{.Project.TotalRows}};
</script>
</body></html>
{{end}}
`))
