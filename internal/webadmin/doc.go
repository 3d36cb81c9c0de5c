// ABOUTME: Package documentation for the admin web UI
// ABOUTME: Notes the bring-your-own-auth policy for the admin routes

// Package webadmin serves the experiment results dashboard and a per-scope
// tracking debug page.
//
// The routes carry no authentication of their own. Deployments mount them
// behind whatever admin middleware already guards their internal surfaces.
package webadmin
