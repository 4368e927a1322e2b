package matcher

const (
	ButtonsHTML = `<!DOCTYPE html>
<html>
<head><title>Deal</title></head>
<body>
	<div id="toolbar" role="toolbar">
		<button id="save" class="primary">Save changes</button>
		<button id="cancel">Cancel</button>
		<a role="button" href="#">Save draft</a>
	</div>
	<div id="sidebar">
		<button data-stock="A123">  Stock A123  </button>
		<button data-stock="B456" hidden>Stock B456</button>
		<button data-stock="C789" style="display: none">Stock C789</button>
	</div>
	<form id="lookup">
		<input id="vin" type="text" name="vin" />
		<input type="checkbox" name="agree" />
	</form>
</body>
</html>`

	ListHTML = `<!DOCTYPE html>
<html>
<body>
	<ul id="results">
		<li class="row"><span class="vin">1FTEW1EP5</span><span class="price">$31,000</span></li>
		<li class="row"><span class="vin">2C3CDXBG8</span><span class="price">$24,500</span></li>
		<li class="row" style="visibility: hidden"><span class="vin">3VWDX7AJ1</span></li>
	</ul>
	<ul id="archived">
		<li class="row"><span class="vin">5YJ3E1EA7</span></li>
	</ul>
</body>
</html>`
)
