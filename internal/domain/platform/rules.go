package platform

import (
	"slices"

	"github.com/deploypilot/deploypilot/internal/domain/stack"
)

// rule is one scoring adjustment. Rules are evaluated in table order, which
// is also the order of the reason fragments.
type rule struct {
	when    func(s *stack.TechSignals) bool
	delta   int
	reason  string
	feature string
}

func always(*stack.TechSignals) bool { return true }

func frameworkIn(names ...string) func(*stack.TechSignals) bool {
	return func(s *stack.TechSignals) bool { return slices.Contains(names, s.Framework) }
}

func isStatic(s *stack.TechSignals) bool         { return s.IsStatic }
func hasSSR(s *stack.TechSignals) bool           { return s.HasServerSideRendering }
func hasAPIRoutes(s *stack.TechSignals) bool     { return s.HasAPIRoutes }
func hasEdgeFunctions(s *stack.TechSignals) bool { return s.HasEdgeFunctions }

// backendService is a pure backend with a known server framework.
func backendService(s *stack.TechSignals) bool {
	return s.Type() == stack.ProjectBackend && s.BackendFramework != ""
}

const backendPenaltyReason = "Long-running backend servers need a separate host"

var catalogue = []Candidate{
	{
		Name:          Vercel,
		BaseScore:     70,
		DefaultReason: "Vercel deploys frontend projects globally with preview URLs for every push",
		rules: []rule{
			{when: frameworkIn("Next.js"), delta: 40, reason: "Vercel builds Next.js with zero configuration", feature: "Next.js Optimized"},
			{when: hasSSR, delta: 20, reason: "Server-side rendering runs natively", feature: "Server-Side Rendering"},
			{when: hasAPIRoutes, delta: 15, reason: "API routes deploy as serverless functions", feature: "Serverless Functions"},
			{when: hasEdgeFunctions, delta: 15, reason: "Edge functions run on the Vercel edge network", feature: "Edge Functions"},
			{when: frameworkIn("React", "Vue.js", "Svelte"), delta: 10, reason: "Framework presets give optimized builds", feature: "Framework Presets"},
			{when: backendService, delta: -20, reason: backendPenaltyReason},
		},
	},
	{
		Name:          Netlify,
		BaseScore:     20,
		DefaultReason: "Netlify hosts static and Jamstack sites with continuous deployment",
		rules: []rule{
			{when: isStatic, delta: 30, reason: "Static sites deploy atomically to the Netlify CDN", feature: "Static Hosting"},
			{when: frameworkIn("Gatsby"), delta: 25, reason: "Gatsby has first-class build plugin support", feature: "Gatsby Plugin"},
			{when: frameworkIn("React", "Vue.js", "Angular"), delta: 20, reason: "Single-page apps get redirect rules out of the box", feature: "SPA Redirects"},
			{when: frameworkIn("Nuxt.js"), delta: 15, reason: "Nuxt.js runs on the Netlify runtime", feature: "Nuxt Runtime"},
			{when: always, delta: 10, reason: "Built-in forms and serverless functions", feature: "Forms & Functions"},
			{when: backendService, delta: -20, reason: backendPenaltyReason},
		},
	},
	{
		Name:          CloudflarePages,
		BaseScore:     50,
		DefaultReason: "Cloudflare Pages serves sites from a global edge network",
		rules: []rule{
			{when: isStatic, delta: 25, reason: "Static assets are served with unlimited bandwidth", feature: "Static Hosting"},
			{when: hasEdgeFunctions, delta: 30, reason: "Edge functions run as Cloudflare Workers", feature: "Workers"},
			{when: frameworkIn("Astro", "Svelte"), delta: 20, reason: "Astro and SvelteKit ship Cloudflare adapters", feature: "Framework Adapter"},
			{when: frameworkIn("Next.js"), delta: 15, reason: "Next.js runs through the Pages adapter", feature: "Next.js Adapter"},
			{when: frameworkIn("React", "Vue.js"), delta: 15, reason: "Single-page apps build and deploy fast", feature: "SPA Hosting"},
			{when: backendService, delta: -20, reason: backendPenaltyReason},
			{when: always, feature: "Global CDN"},
		},
	},
	{
		Name:          GitHubPages,
		BaseScore:     40,
		DefaultReason: "GitHub Pages hosts static content directly from the repository",
		rules: []rule{
			{when: func(s *stack.TechSignals) bool { return s.IsStatic || s.Framework == "Static HTML" }, delta: 40, reason: "Static sites are hosted free from the repository", feature: "Static Hosting"},
			{when: func(s *stack.TechSignals) bool { return s.HasTechnology("Jekyll") }, delta: 20, reason: "Jekyll builds run natively", feature: "Jekyll"},
			{when: frameworkIn("React", "Vue.js"), delta: 15, reason: "Single-page apps work once built to static files", feature: "SPA Hosting"},
			{when: frameworkIn("Gatsby", "Astro"), delta: 20, reason: "Static site generator output deploys as-is", feature: "SSG Output"},
			{when: func(s *stack.TechSignals) bool { return s.HasServerSideRendering || s.HasAPIRoutes }, delta: -30, reason: "Server-side rendering and API routes are not supported"},
			{when: func(s *stack.TechSignals) bool { return s.Type() == stack.ProjectBackend }, delta: -40, reason: "Backend services cannot run on GitHub Pages"},
		},
	},
}
