package rod

const (
	// InventoryHTML mirrors the shape of the listing pages workflows target.
	InventoryHTML = `<!DOCTYPE html>
<html>
<head><title>Inventory - Phoenix</title></head>
<body>
	<div id="toolbar">
		<button id="approve">Approve</button>
		<button id="block" style="display:none">Block</button>
	</div>
	<input id="zip" type="text" />
	<ul id="results">
		<li class="row"><span class="vin">V1</span></li>
		<li class="row"><span class="vin">V2</span></li>
	</ul>
	<div id="log"></div>
	<script>
		document.getElementById('approve').addEventListener('click', function() {
			document.getElementById('log').textContent = 'approved';
		});
		document.getElementById('zip').addEventListener('keydown', function(e) {
			if (e.key === 'Enter') document.getElementById('log').textContent = 'zip ' + this.value;
		});
	</script>
</body>
</html>`

	// RoutedHTML changes its route and tree on demand.
	RoutedHTML = `<!DOCTYPE html>
<html>
<body>
	<button id="route">Next</button>
	<button id="grow">Grow</button>
	<ul id="list"></ul>
	<script>
		document.getElementById('route').addEventListener('click', function() {
			history.pushState({}, '', '/inventory/next');
		});
		document.getElementById('grow').addEventListener('click', function() {
			const li = document.createElement('li');
			li.textContent = 'added';
			document.getElementById('list').appendChild(li);
		});
	</script>
</body>
</html>`

	WideHTML = `<!DOCTYPE html>
<html>
<body style="width: 2000px; height: 1500px;">
	<h1>Large Page</h1>
</body>
</html>`
)
