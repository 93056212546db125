package crossthread

// Protect executes fn, containing any panic the same way the loop contains
// panics at its dispatch boundary: the panic is recovered, logged with
// goroutine context, and returned. A nil return means fn completed normally.
//
// Intended for the outermost frames of worker goroutines, where an escaping
// panic would otherwise tear down the process.
func Protect(fn func()) (recovered any) {
	defer func() {
		if r := recover(); r != nil {
			recovered = r
			if b := getLogger().Err(); b.Enabled() {
				b = b.Uint64("goroutine", goroutineID())
				if err, ok := r.(error); ok {
					b = b.Err(err)
				} else {
					b = b.Field("panic", r)
				}
				b.Log("uncaught panic in protected call")
			}
		}
	}()

	fn()
	return nil
}
