/*
Package imagemanager coalesces concurrent image requests.

A request is identified by the fingerprint of (asset, target size, content
mode); data requests use the asset alone. While a fetch for a fingerprint
is in flight, identical requests attach to it instead of starting another
one, and receive the same RequestID. When the fetch ends, by success,
failure or cancellation, its ledger entry is removed and every attached
observer receives exactly one Result.

	m := imagemanager.New(provider)
	defer m.Close()

	id, err := m.RequestImage(asset, assets.Size{Width: 100, Height: 100},
	    assets.AspectFill, imagemanager.DefaultFetchOptions(),
	    func(r imagemanager.Result) {
	        if r.Succeeded() {
	            show(r.Response.Image)
	        }
	    })

Callbacks, both results and progress, run serially on the Manager's
Dispatcher goroutine, whatever goroutine the provider reports from.

Progress subscribers that are not themselves requesters register with
Observe and drop out with Subscription.Release. Subscriptions end on their
own when the asset has nothing left in flight.

ImageTask and ImageDataTask return the request's shared Task, a future that
can be waited on with a context:

	task, err := m.ImageTask(asset, size, mode, opts, nil)
	resp, err := task.Wait(ctx)
*/
package imagemanager
