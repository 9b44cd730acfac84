package deploy

import (
	"github.com/arthur-debert/resdeploy/pkg/bundle"
	"github.com/arthur-debert/resdeploy/pkg/errors"
	"github.com/arthur-debert/resdeploy/pkg/resources"
	"github.com/arthur-debert/resdeploy/pkg/template"
)

// Builder configures and runs one deployment. Construction is
// two-step and order-insensitive: start with either From or To, supply
// the other template, set options, then call Load.
//
// The resource path template may contain one '*' denoting the variable
// part of the resource name. All '_' characters in resource filenames
// become '.'; names ending in '.zst'/'_zst' are decompressed with the
// suffix removed. Both templates substitute $(OS), $(ARCH), $(DLLEXT)
// and $(VERSION); deployment templates also accept $(TEMP) and
// $(RANDOM).
type Builder struct {
	eng *Engine
	err error
}

// FromStep is the partial builder returned by From, asking for the
// deployment path template.
type FromStep struct{ b *Builder }

// ToStep is the partial builder returned by To, asking for the
// resource path template.
type ToStep struct{ b *Builder }

// From starts a builder with the resource path template. The bundle
// the resources are read from must be supplied with WithBundle before
// Load.
func From(resourcePathTemplate string) *FromStep {
	b := &Builder{eng: newEngine()}
	b.setFrom(resourcePathTemplate)
	return &FromStep{b}
}

// FromBundle starts a builder with the resource path template and the
// bundle that owns the resources.
func FromBundle(owner bundle.Bundle, resourcePathTemplate string) *FromStep {
	b := &Builder{eng: newEngine()}
	b.eng.bundle = owner
	b.setFrom(resourcePathTemplate)
	return &FromStep{b}
}

// To starts a builder with the deployment path template, absolute or
// relative. A relative path is tried against several platform root
// paths until deployment succeeds.
func To(deploymentPathTemplate string) *ToStep {
	b := &Builder{eng: newEngine()}
	b.eng.deploymentTemplate = deploymentPathTemplate
	return &ToStep{b}
}

// To supplies the deployment path template.
func (f *FromStep) To(deploymentPathTemplate string) *Builder {
	f.b.eng.deploymentTemplate = deploymentPathTemplate
	return f.b
}

// From supplies the resource path template.
func (t *ToStep) From(resourcePathTemplate string) *Builder {
	t.b.setFrom(resourcePathTemplate)
	return t.b
}

// FromBundle supplies the resource path template and the owning
// bundle.
func (t *ToStep) FromBundle(owner bundle.Bundle, resourcePathTemplate string) *Builder {
	t.b.eng.bundle = owner
	t.b.setFrom(resourcePathTemplate)
	return t.b
}

func (b *Builder) setFrom(tpl string) {
	eng := b.eng
	if eng.resourceTemplate != "" {
		b.fail(errors.New(errors.ErrConfiguration, "resource path is already specified"))
		return
	}
	eng.resourceTemplate = tpl

	expanded, err := template.ExpandSource(tpl)
	if err != nil {
		b.fail(err)
		return
	}
	src, err := resources.ParseSourcePath(expanded)
	if err != nil {
		b.fail(err)
		return
	}
	eng.src = src
}

// fail records the first configuration error; Load reports it.
func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// WithBundle sets the bundle resources are read from. The engine
// closes a bundle opened by WithBundleURL; bundles passed in here stay
// open for the caller.
func (b *Builder) WithBundle(owner bundle.Bundle) *Builder {
	b.eng.bundle = owner
	return b
}

// WithBundleURL opens the bundle from its URL form (directory, zip
// archive, or nested archive) and hands its lifetime to the engine.
func (b *Builder) WithBundleURL(url string) *Builder {
	owner, err := bundle.OpenURL(url)
	if err != nil {
		b.fail(errors.Wrapf(err, errors.ErrResourceNotFound, "unable to open bundle: %s", url))
		return b
	}
	b.eng.bundle = owner
	b.eng.ownsBundle = true
	return b
}

// AlwaysOverwrite disables the verify fast-path; every load rewrites
// the files.
func (b *Builder) AlwaysOverwrite(enabled bool) *Builder {
	b.eng.alwaysOverwrite = enabled
	return b
}

// ReusePartiallyDeployed keeps read locks acquired on a partial prior
// deployment across verify retries and into the deploy phase.
// Incompatible with AlwaysOverwrite.
func (b *Builder) ReusePartiallyDeployed(enabled bool) *Builder {
	b.eng.reusePartiallyDeployed = enabled
	return b
}

// ShouldLoadLibraries controls whether deployed dynamic libraries are
// loaded into the process. Default true.
func (b *Builder) ShouldLoadLibraries(enabled bool) *Builder {
	b.eng.shouldLoadLibraries = enabled
	return b
}

// TryRandomFallbackSubDirectory adds a one-shot $(RANDOM)
// subdirectory as a second candidate for absolute deployment paths.
func (b *Builder) TryRandomFallbackSubDirectory(enabled bool) *Builder {
	b.eng.addRandomFallback = enabled
	return b
}

// AddLibrarySuffix renames dynamic libraries by inserting suffix
// before the extension, patching each library's embedded
// self-reference on non-Windows platforms.
func (b *Builder) AddLibrarySuffix(suffix string) *Builder {
	if suffix == "" {
		b.fail(errors.New(errors.ErrConfiguration, "library name suffix should not be empty"))
		return b
	}
	b.eng.librarySuffix = suffix
	return b
}

// RetryTimeout overrides the size-derived lock/verify retry timeout.
func (b *Builder) RetryTimeout(millis int) *Builder {
	b.eng.retryTimeoutMs = int64(millis)
	return b
}

// Load deploys the resources and, unless disabled, loads the dynamic
// libraries. Candidate roots are tried in order; only when every root
// fails does Load return an error, carrying the last attempted path
// and the retained cause.
func (b *Builder) Load() (*Deployment, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.eng.load(); err != nil {
		return nil, err
	}
	return &Deployment{eng: b.eng}, nil
}

// Deployment is the handle returned by a successful Load.
type Deployment struct {
	eng *Engine
}

// ActualDeploymentPath returns the root the resources were deployed
// to.
func (d *Deployment) ActualDeploymentPath() string {
	if d.eng.lastSuccessfulPath != "" {
		return d.eng.lastSuccessfulPath
	}
	return d.eng.lastUsedPath
}

// ActualResourcePath returns the expanded source path the resources
// were enumerated from.
func (d *Deployment) ActualResourcePath() string {
	return d.eng.src.String()
}

// Resources returns the deployed resource set.
func (d *Deployment) Resources() []*resources.Resource {
	return d.eng.resources
}

// UnloadLibraries is a documented no-op: the platform offers no true
// unload, so libraries stay mapped until the process exits. Present
// for API symmetry with loading.
func (d *Deployment) UnloadLibraries() *Deployment {
	return d
}
