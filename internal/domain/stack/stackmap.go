package stack

// All tables in this file are ordered: the first matching rule wins.

// depRule maps a label to the package names (or manifest substrings) that
// indicate it. Names are lower-case.
type depRule struct {
	Label    string
	Packages []string
}

// dbRule is a depRule that may also mark database usage.
type dbRule struct {
	Label    string
	Packages []string
	Database bool
}

// lockfileRule maps a lockfile to its package manager.
type lockfileRule struct {
	File    string
	Manager string
}

// nodeLockfiles is checked in priority order; npm is the fallback.
var nodeLockfiles = []lockfileRule{
	{File: "pnpm-lock.yaml", Manager: "pnpm"},
	{File: "yarn.lock", Manager: "yarn"},
	{File: "package-lock.json", Manager: "npm"},
	{File: "bun.lockb", Manager: "bun"},
}

const defaultNodePackageManager = "npm"

var nodeFrameworks = []depRule{
	{Label: "Next.js", Packages: []string{"next"}},
	{Label: "Nuxt.js", Packages: []string{"nuxt", "nuxt3"}},
	{Label: "Gatsby", Packages: []string{"gatsby"}},
	{Label: "React", Packages: []string{"react"}},
	{Label: "Vue.js", Packages: []string{"vue"}},
	{Label: "Svelte", Packages: []string{"svelte", "@sveltejs/kit"}},
	{Label: "Astro", Packages: []string{"astro"}},
	{Label: "Angular", Packages: []string{"@angular/core"}},
}

var nodeBackends = []depRule{
	{Label: "Express", Packages: []string{"express"}},
	{Label: "Fastify", Packages: []string{"fastify"}},
	{Label: "Koa", Packages: []string{"koa"}},
	{Label: "Hapi", Packages: []string{"@hapi/hapi", "hapi"}},
	{Label: "NestJS", Packages: []string{"@nestjs/core"}},
	{Label: "AdonisJS", Packages: []string{"@adonisjs/core"}},
}

var nodeDatabases = []dbRule{
	{Label: "MongoDB", Packages: []string{"mongoose", "mongodb"}, Database: true},
	{Label: "PostgreSQL", Packages: []string{"pg", "postgres"}, Database: true},
	{Label: "MySQL", Packages: []string{"mysql", "mysql2"}, Database: true},
	{Label: "Sequelize", Packages: []string{"sequelize"}, Database: true},
	{Label: "TypeORM", Packages: []string{"typeorm"}, Database: true},
	{Label: "Prisma", Packages: []string{"prisma", "@prisma/client"}, Database: true},
	{Label: "Redis", Packages: []string{"redis", "ioredis"}},
}

var nodeBuildTools = []depRule{
	{Label: "Vite", Packages: []string{"vite"}},
	{Label: "Webpack", Packages: []string{"webpack"}},
	{Label: "Parcel", Packages: []string{"parcel", "parcel-bundler"}},
}

var nodeEdgePackages = []string{
	"@vercel/edge",
	"@vercel/edge-config",
	"@cloudflare/workers-types",
	"wrangler",
	"@netlify/edge-functions",
}

// scriptRule matches a package.json script body.
type scriptRule struct {
	Substring string
	Framework string
	BuildTool string
	Static    bool
}

var nodeBuildScripts = []scriptRule{
	{Substring: "next build", Framework: "Next.js"},
	{Substring: "nuxt build", Framework: "Nuxt.js"},
	{Substring: "gatsby build", Framework: "Gatsby", Static: true},
	{Substring: "vite build", BuildTool: "Vite"},
}

// nodeServerStarts in a start script mean the repo runs its own server.
var nodeServerStarts = []string{"node server", "nodemon"}

// ssrFrameworks render on the server when adopted.
var ssrFrameworks = map[string]bool{
	"Next.js": true,
	"Nuxt.js": true,
}

var pythonMarkers = []string{"requirements.txt", "Pipfile", "pyproject.toml", "setup.py"}

var pythonFrameworks = []depRule{
	{Label: "Django", Packages: []string{"django"}},
	{Label: "Flask", Packages: []string{"flask"}},
	{Label: "FastAPI", Packages: []string{"fastapi"}},
	{Label: "Tornado", Packages: []string{"tornado"}},
	{Label: "Pyramid", Packages: []string{"pyramid"}},
}

var pythonDatabases = []dbRule{
	{Label: "PostgreSQL", Packages: []string{"psycopg2", "asyncpg"}, Database: true},
	{Label: "MongoDB", Packages: []string{"pymongo"}, Database: true},
	{Label: "SQLAlchemy", Packages: []string{"sqlalchemy"}, Database: true},
}

// ecosystem describes a backend language detected by marker files and a
// substring scan of its primary manifest.
type ecosystem struct {
	Name     string
	Language string
	Label    string
	// Markers are exact root filenames; MarkerSuffixes match any root file
	// ending in the suffix (e.g. ".csproj").
	Markers        []string
	MarkerSuffixes []string
	// Manifests are read in order; the first one present is scanned.
	Manifests  []string
	Frameworks []depRule
	// StaticGenerators turn the repo into a static frontend instead of a backend.
	StaticGenerators []depRule
	// Parsers turn a manifest, keyed by filename, into the text that is
	// scanned. An error marks the manifest as malformed. Manifests without a
	// parser are scanned as raw text.
	Parsers map[string]func(text string) (string, error)
}

var backendEcosystems = []ecosystem{
	{
		Name:      "java",
		Language:  "Java",
		Label:     "Java",
		Markers:   []string{"pom.xml", "build.gradle", "build.gradle.kts"},
		Manifests: []string{"pom.xml", "build.gradle", "build.gradle.kts"},
		Frameworks: []depRule{
			{Label: "Spring Boot", Packages: []string{"spring-boot"}},
			{Label: "Quarkus", Packages: []string{"quarkus"}},
			{Label: "Micronaut", Packages: []string{"micronaut"}},
		},
	},
	{
		Name:           "dotnet",
		Language:       "C#",
		Label:          ".NET",
		Markers:        []string{"global.json", "nuget.config", "NuGet.Config"},
		MarkerSuffixes: []string{".csproj"},
		Frameworks: []depRule{
			{Label: "ASP.NET Core", Packages: []string{"microsoft.net.sdk.web", "microsoft.aspnetcore"}},
		},
	},
	{
		Name:      "go",
		Language:  "Go",
		Label:     "Go",
		Markers:   []string{"go.mod", "go.sum"},
		Manifests: []string{"go.mod"},
		Frameworks: []depRule{
			{Label: "Gin", Packages: []string{"github.com/gin-gonic/gin"}},
			{Label: "Fiber", Packages: []string{"github.com/gofiber/fiber"}},
			{Label: "Echo", Packages: []string{"github.com/labstack/echo"}},
			{Label: "Gorilla Mux", Packages: []string{"github.com/gorilla/mux"}},
			{Label: "Chi", Packages: []string{"github.com/go-chi/chi"}},
		},
		Parsers: map[string]func(string) (string, error){"go.mod": goModRequires},
	},
	{
		Name:      "ruby",
		Language:  "Ruby",
		Label:     "Ruby",
		Markers:   []string{"Gemfile", "Gemfile.lock"},
		Manifests: []string{"Gemfile", "Gemfile.lock"},
		Frameworks: []depRule{
			{Label: "Ruby on Rails", Packages: []string{"rails"}},
			{Label: "Sinatra", Packages: []string{"sinatra"}},
		},
		StaticGenerators: []depRule{
			{Label: "Jekyll", Packages: []string{"jekyll", "github-pages"}},
		},
	},
	{
		Name:      "php",
		Language:  "PHP",
		Label:     "PHP",
		Markers:   []string{"composer.json", "composer.lock"},
		Manifests: []string{"composer.json", "composer.lock"},
		Frameworks: []depRule{
			{Label: "Laravel", Packages: []string{"laravel/framework"}},
			{Label: "Symfony", Packages: []string{"symfony/"}},
			{Label: "CodeIgniter", Packages: []string{"codeigniter"}},
		},
		Parsers: map[string]func(string) (string, error){"composer.json": composerRequires},
	},
	{
		Name:      "rust",
		Language:  "Rust",
		Label:     "Rust",
		Markers:   []string{"Cargo.toml", "Cargo.lock"},
		Manifests: []string{"Cargo.toml"},
		Frameworks: []depRule{
			{Label: "Actix Web", Packages: []string{"actix-web"}},
			{Label: "Rocket", Packages: []string{"rocket"}},
			{Label: "Axum", Packages: []string{"axum"}},
		},
		Parsers: map[string]func(string) (string, error){"Cargo.toml": cargoDependencies},
	},
}

var dockerMarkers = []string{
	"Dockerfile",
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
}

// configRule maps a root config filename to what it implies. Prefix rules
// match any extension (next.config.js, next.config.mjs, ...).
type configRule struct {
	Exact      string
	Prefix     string
	Framework  string
	BuildTool  string
	Technology string
}

var configFiles = []configRule{
	{Prefix: "next.config.", Framework: "Next.js"},
	{Prefix: "nuxt.config.", Framework: "Nuxt.js"},
	{Prefix: "gatsby-config.", Framework: "Gatsby"},
	{Prefix: "astro.config.", Framework: "Astro"},
	{Prefix: "svelte.config.", Framework: "Svelte"},
	{Exact: "angular.json", Framework: "Angular"},
	{Prefix: "vite.config.", BuildTool: "Vite"},
	{Exact: "_config.yml", Technology: "Jekyll"},
}

const (
	staticHTMLFramework = "Static HTML"
	apiRoutesLabel      = "API Routes"
	staticAssetsLabel   = "Static Assets"
)

// apiRoutesParent is the directory whose "api" subdirectory holds
// serverless API routes.
const apiRoutesParent = "pages"
